package services

import (
	"github.com/robfig/cron/v3"

	"paynotify-system/internal/domain"
	"paynotify-system/pkg/logger"
)

// RegistrySweeper periodically drops closed connections that no lookup has
// pruned yet.
type RegistrySweeper struct {
	cron     *cron.Cron
	registry domain.ConnectionRegistry
	log      logger.Logger
}

func NewRegistrySweeper(registry domain.ConnectionRegistry, log logger.Logger) *RegistrySweeper {
	return &RegistrySweeper{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		log:      log,
	}
}

func (s *RegistrySweeper) Start() error {
	s.log.Info("Starting connection registry sweeper")

	_, err := s.cron.AddFunc("@every 30s", s.sweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *RegistrySweeper) Stop() error {
	s.log.Info("Stopping connection registry sweeper")
	s.cron.Stop()
	return nil
}

func (s *RegistrySweeper) sweep() {
	pruned := s.registry.PruneClosed()
	if pruned > 0 {
		s.log.Info("Pruned closed connections", "count", pruned)
	}
}
