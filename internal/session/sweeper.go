package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically evicts idle sessions.
type Sweeper struct {
	cron     *cron.Cron
	manager  *Manager
	interval time.Duration
}

func NewSweeper(m *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		manager:  m,
		interval: interval,
	}
}

// Run schedules the sweep and blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		log.Println("[Sweeper] Disabled (interval <= 0)")
		<-ctx.Done()
		return nil
	}

	_, err := s.cron.AddFunc("@every "+s.interval.String(), func() { s.sweep(ctx) })
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	s.cron.Start()
	log.Printf("[Sweeper] Started (every %v)", s.interval)

	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Println("[Sweeper] Stopped")
	return nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.manager.EvictIdle(ctx)
	if err != nil {
		log.Printf("[Sweeper] Sweep failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[Sweeper] Evicted %d idle sessions", n)
	}
}
