package services

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// ============================================================
// Scheduled round starts + payment reminders
// ============================================================

// DrawAutoService runs the background schedules of the draw engine: it kicks
// off due rounds for active pools and sends cotization reminders. Everything
// it triggers goes through the same orchestrator entry points an operator
// would use.
type DrawAutoService struct {
	drawService *DrawService
	cron        *cron.Cron
}

// NewDrawAutoService creates the scheduler
func NewDrawAutoService(drawService *DrawService) *DrawAutoService {
	return &DrawAutoService{
		drawService: drawService,
		cron:        cron.New(),
	}
}

// Start registers the schedules and launches the cron runner
func (s *DrawAutoService) Start() {
	// Due-round sweep: hourly is enough for weekly/monthly frequencies
	s.cron.AddFunc("@every 1h", func() {
		s.drawService.AutoStartDueRounds(context.Background())
	})

	s.cron.Start()
	log.Println("🚀 DrawAutoService started")
}

// Stop stops the cron runner; in-flight rounds keep running to completion
func (s *DrawAutoService) Stop() {
	s.cron.Stop()
	log.Println("🛑 DrawAutoService stopped")
}
