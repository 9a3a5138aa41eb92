package invoice

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// PollResult is what a single download poll observed.
type PollResult int

const (
	// PollNothing means neither an artifact nor an error surfaced yet.
	PollNothing PollResult = iota
	// PollComplete means the download artifact is ready.
	PollComplete
	// PollErrorModal means the portal surfaced its download-error modal.
	PollErrorModal
)

// DownloadAction abstracts the UI interactions of one invoice download
// so the retry loop can run against a fake in tests. Implementations
// live next to the browser session.
type DownloadAction interface {
	// Trigger starts the download (the card's download button click).
	Trigger(ctx context.Context) error

	// Poll checks once for a completed artifact or an error indicator.
	Poll(ctx context.Context) (PollResult, error)

	// Artifact returns the downloaded document bytes after PollComplete.
	Artifact(ctx context.Context) ([]byte, error)

	// DismissError closes the error modal after PollErrorModal. The
	// implementation tries its fallback dismissal strategies in order.
	DismissError(ctx context.Context) error

	// Reload forces a full reload of the invoice view after a silent
	// timeout, so the next attempt starts from a clean page.
	Reload(ctx context.Context) error
}

// AlertSink receives the manager notification when a download is given
// up on. It is invoked exactly once per exhausted download.
type AlertSink interface {
	DownloadFailed(ctx context.Context, uc, referenceMonth string)
}

// Downloader runs the bounded download retry loop. Each attempt triggers
// the action and then polls at PollInterval up to PollCeiling for either
// the artifact or the error modal; both faults (spurious modal, silent
// non-delivery) are indistinguishable in advance, so every attempt
// watches for both.
type Downloader struct {
	MaxAttempts  int
	PollInterval time.Duration
	PollCeiling  time.Duration
	Backoff      time.Duration

	logger *logrus.Entry
}

// NewDownloader creates a Downloader with the portal's known-good bounds:
// 5 attempts, 1s polls capped at 30s, 3s backoff between attempts.
func NewDownloader(logger *logrus.Entry) *Downloader {
	return &Downloader{
		MaxAttempts:  5,
		PollInterval: 1 * time.Second,
		PollCeiling:  30 * time.Second,
		Backoff:      3 * time.Second,
		logger:       logger,
	}
}

// Download attempts to obtain the invoice document. On exhaustion it
// notifies the alert sink once and returns ErrDownloadFailed.
func (d *Downloader) Download(ctx context.Context, action DownloadAction, alert AlertSink, uc, referenceMonth string) ([]byte, error) {
	for attempt := 1; attempt <= d.MaxAttempts; attempt++ {
		log := d.logger.WithFields(logrus.Fields{
			"uc":      uc,
			"mes":     referenceMonth,
			"attempt": attempt,
		})
		log.Info("Starting invoice download attempt")

		data, err := d.attempt(ctx, action)
		if err == nil {
			log.Info("Invoice download succeeded")
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		log.WithError(err).Warn("Invoice download attempt failed")

		if attempt < d.MaxAttempts {
			if err := sleepCtx(ctx, d.Backoff); err != nil {
				return nil, err
			}
		}
	}

	d.logger.WithFields(logrus.Fields{
		"uc":       uc,
		"mes":      referenceMonth,
		"attempts": d.MaxAttempts,
	}).Error("Invoice download exhausted all attempts, notifying manager")

	if alert != nil {
		alert.DownloadFailed(ctx, uc, referenceMonth)
	}
	return nil, ErrDownloadFailed
}

// attempt runs one trigger+poll cycle: Idle -> Attempting ->
// {Success, ModalError, Timeout}.
func (d *Downloader) attempt(ctx context.Context, action DownloadAction) ([]byte, error) {
	if err := action.Trigger(ctx); err != nil {
		return nil, err
	}

	for elapsed := time.Duration(0); elapsed < d.PollCeiling; elapsed += d.PollInterval {
		if err := sleepCtx(ctx, d.PollInterval); err != nil {
			return nil, err
		}

		result, err := action.Poll(ctx)
		if err != nil {
			// A failed poll is not an outcome; keep polling until the
			// ceiling decides.
			continue
		}

		switch result {
		case PollComplete:
			return action.Artifact(ctx)
		case PollErrorModal:
			if dismissErr := action.DismissError(ctx); dismissErr != nil {
				d.logger.WithError(dismissErr).Warn("Could not dismiss download error modal")
			}
			return nil, errModalDetected
		}
	}

	// Neither outcome within the ceiling: the portal silently dropped
	// the download. Reload so the next attempt starts clean.
	if reloadErr := action.Reload(ctx); reloadErr != nil {
		d.logger.WithError(reloadErr).Warn("Page reload after download timeout failed")
	}
	return nil, errPollTimeout
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
