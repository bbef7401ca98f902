package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Minute
)

// ExpirySweeper removes rows whose lifetime has elapsed.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

type CleanupService struct {
	tempLogins ExpirySweeper
	interval   time.Duration
}

func NewCleanupService(tempLogins ExpirySweeper, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupService{
		tempLogins: tempLogins,
		interval:   interval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting token cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping token cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	deleted, err := s.tempLogins.SweepExpired(ctx)
	if err != nil {
		slog.Error("error deleting expired temp login tokens", "component", "cleanup", "error", err)
	} else if deleted > 0 {
		slog.Info("deleted expired temp login tokens", "component", "cleanup", "count", deleted)
	}
}
