package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
)

// ErrNoCode means the inbox has no fresh verification code yet
var ErrNoCode = errors.New("nenhum codigo de verificacao disponivel")

// ErrCodeTimeout means the code never arrived before the deadline
var ErrCodeTimeout = errors.New("tempo esgotado aguardando codigo de verificacao")

var codePattern = regexp.MustCompile(`Codigo de seguranca: (\d+)`)

// MailCodeService reads SMS-forwarded portal verification codes from an
// IMAP inbox. The phone receiving the SMS runs a forwarder that mails
// each message with a fixed subject.
type MailCodeService struct {
	config       *config.Config
	logger       *logrus.Logger
	pollInterval time.Duration
	now          func() time.Time
	dial         func() (imapClient, error)
}

type imapClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// NewMailCodeService creates a new mail code service
func NewMailCodeService(cfg *config.Config, logger *logrus.Logger) *MailCodeService {
	svc := &MailCodeService{
		config:       cfg,
		logger:       logger,
		pollInterval: 5 * time.Second,
		now:          time.Now,
	}
	svc.dial = func() (imapClient, error) {
		return client.DialTLS(cfg.Mail.Host, nil)
	}
	return svc
}

// FetchCode checks the inbox once. Each check opens a fresh connection;
// the portal asks for a code at most once per login, so there is nothing
// to gain from keeping the session alive.
func (m *MailCodeService) FetchCode(ctx context.Context) (string, error) {
	c, err := m.dial()
	if err != nil {
		return "", fmt.Errorf("erro ao conectar no servidor de email: %w", err)
	}
	defer func() { _ = c.Logout() }()

	if err := c.Login(m.config.Mail.Login, m.config.Mail.Password); err != nil {
		return "", fmt.Errorf("erro ao autenticar no servidor de email: %w", err)
	}
	if _, err := c.Select("INBOX", true); err != nil {
		return "", fmt.Errorf("erro ao abrir INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Subject", m.config.Mail.Subject)
	ids, err := c.Search(criteria)
	if err != nil {
		return "", fmt.Errorf("erro ao buscar mensagens: %w", err)
	}
	if len(ids) == 0 {
		return "", ErrNoCode
	}

	// Only the newest forwarded SMS matters.
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids[len(ids)-1])

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	if err := c.Fetch(seqset, []imap.FetchItem{imap.FetchEnvelope, section.FetchItem()}, messages); err != nil {
		return "", fmt.Errorf("erro ao ler mensagem: %w", err)
	}

	msg := <-messages
	if msg == nil || msg.Envelope == nil {
		return "", ErrNoCode
	}
	if age := m.now().Sub(msg.Envelope.Date); age > m.config.Mail.MaxAge {
		m.logger.WithField("idade", age.String()).Debug("Codigo mais recente ja expirou")
		return "", ErrNoCode
	}

	bodyReader := msg.GetBody(section)
	if bodyReader == nil {
		return "", ErrNoCode
	}
	body, err := io.ReadAll(bodyReader)
	if err != nil {
		return "", fmt.Errorf("erro ao ler corpo da mensagem: %w", err)
	}

	match := codePattern.FindSubmatch(body)
	if match == nil {
		return "", ErrNoCode
	}
	return string(match[1]), nil
}

// WaitForCode polls the inbox until a code arrives or ctx expires. The
// resend callback is invoked at the configured interval so the portal
// sends a fresh SMS when the first one got lost; resend errors are
// logged and tolerated.
func (m *MailCodeService) WaitForCode(ctx context.Context, resend func(context.Context) error) (string, error) {
	lastResend := m.now()

	for {
		code, err := m.FetchCode(ctx)
		if err == nil {
			return code, nil
		}
		if !errors.Is(err, ErrNoCode) {
			m.logger.WithError(err).Warn("Falha ao consultar caixa de entrada")
		}

		if resend != nil && m.now().Sub(lastResend) >= m.config.Portal.ResendInterval {
			if err := resend(ctx); err != nil {
				m.logger.WithError(err).Warn("Falha ao reenviar codigo")
			}
			lastResend = m.now()
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrCodeTimeout, ctx.Err())
		case <-time.After(m.pollInterval):
		}
	}
}
