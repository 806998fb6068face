package tiger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor prunes expired tract cache entries in the background.
type Janitor struct {
	svc      *Service
	interval time.Duration
}

// NewJanitor creates a janitor. A non-positive interval defaults to one hour.
func NewJanitor(svc *Service, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{svc: svc, interval: interval}
}

// Run prunes on every tick until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "tiger.janitor"))
	log.Info("starting tract cache janitor", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("tract cache janitor stopped")
			return
		case <-ticker.C:
			n, err := j.svc.Prune(ctx)
			if err != nil {
				log.Error("tiger: prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("pruned expired tracts", zap.Int("tracts", n))
			}
		}
	}
}
