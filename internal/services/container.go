package services

import (
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/config"
)

// Container holds all service instances and wires their dependencies
type Container struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Cache     *CacheService
	Staging   *StagingRepository
	Upstream  *UpstreamService
	Billing   *BillingService
	Browser   *BrowserService
	Mail      *MailCodeService
	Alert     *AlertService
	Portal    *PortalService
	Processor *ProcessorService
}

// NewContainer creates and wires all services
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	cache := NewCacheService(cfg, logger)

	staging, err := NewStagingRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	upstream := NewUpstreamService(cfg, logger, staging)
	billing := NewBillingService(cfg, logger)
	browser := NewBrowserService(cfg, logger)
	mail := NewMailCodeService(cfg, logger)
	alert := NewAlertService(cfg, logger)
	portal := NewPortalService(cfg, logger, browser, mail)
	processor := NewProcessorService(cfg, logger, cache, staging, upstream, billing, portal, alert)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Cache:     cache,
		Staging:   staging,
		Upstream:  upstream,
		Billing:   billing,
		Browser:   browser,
		Mail:      mail,
		Alert:     alert,
		Portal:    portal,
		Processor: processor,
	}, nil
}

// Health aggregates the health of every service
func (c *Container) Health() map[string]interface{} {
	return map[string]interface{}{
		"cache":     c.Cache.Health(),
		"browser":   c.Browser.Health(),
		"processor": c.Processor.Health(),
	}
}

// Close shuts the services down in dependency order
func (c *Container) Close() error {
	if err := c.Processor.Close(); err != nil {
		c.Logger.WithError(err).Warn("Falha ao encerrar o processador")
	}
	return c.Cache.Close()
}
