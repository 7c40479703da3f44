package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tomebooks/tome/pkg/bookings"
	"github.com/tomebooks/tome/pkg/config"
	"github.com/tomebooks/tome/pkg/passwords"
)

var processID = randStringBytes(8)

// Worker runs the periodic maintenance loops: sweeping APPROVED bookings past
// their return date to OVERDUE, and purging used or expired password-reset
// tokens.
type Worker struct {
	config *config.Config
	log    logger.Logger

	bookingService  *bookings.Service
	passwordService *passwords.Service

	shutdown     chan struct{}
	doneSweeping chan struct{}
	doneCleaning chan struct{}
}

// New creates a worker sharing the services the HTTP layer uses.
func New(cfg *config.Config, bookingService *bookings.Service, passwordService *passwords.Service) *Worker {
	return &Worker{
		config: cfg,
		log:    logger.New(),

		bookingService:  bookingService,
		passwordService: passwordService,

		shutdown:     make(chan struct{}),
		doneSweeping: make(chan struct{}),
		doneCleaning: make(chan struct{}),
	}
}

// Start launches the background loops. Both run once immediately so a process
// restart can't push maintenance out by a full interval.
func (w *Worker) Start() {
	go w.sweepOverdue()
	go w.cleanupResets()
}

func (w *Worker) sweepOverdue() {
	timer := time.NewTimer(0)

	for {
		select {
		case <-w.shutdown:
			w.doneSweeping <- struct{}{}
			return
		case <-timer.C:
			log, ctx := w.runLogger("overdue_sweep")

			marked, err := w.bookingService.MarkOverdue(ctx, time.Now())
			if err != nil {
				log.Err(err).Error("overdue sweep error")
			} else if marked > 0 {
				log.Info("marked overdue bookings", logger.Data{"count": marked})
			}

			timer.Reset(w.config.OverdueSweepInterval)
		}
	}
}

func (w *Worker) cleanupResets() {
	timer := time.NewTimer(0)

	for {
		select {
		case <-w.shutdown:
			w.doneCleaning <- struct{}{}
			return
		case <-timer.C:
			log, ctx := w.runLogger("reset_cleanup")

			deleted, err := w.passwordService.CleanupExpired(ctx)
			if err != nil {
				log.Err(err).Error("reset cleanup error")
			} else if deleted > 0 {
				log.Info("purged password reset tokens", logger.Data{"count": deleted})
			}

			timer.Reset(w.config.CleanupInterval)
		}
	}
}

// Shutdown stops both loops and waits for any in-flight run to finish.
func (w *Worker) Shutdown() {
	close(w.shutdown)

	<-w.doneSweeping
	<-w.doneCleaning
}

func (w *Worker) runLogger(task string) (logger.Logger, context.Context) {
	log := w.log
	if id, err := uuid.NewRandom(); err == nil {
		log = log.ID(id.String())
	}
	log = log.Root(logger.Data{"task": task, "process_id": processID})
	return log, log.WithContext(context.Background())
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
