package presence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// OnlineUpdater persists last-seen timestamps for users.
type OnlineUpdater interface {
	UpdateOnline(ctx context.Context, userID string, seenAt time.Time) error
}

// RecorderConfig controls the concurrency characteristics of the recorder.
type RecorderConfig struct {
	QueueSize int
	Workers   int
}

// Recorder asynchronously records "last seen online" touches. Touches are
// best effort: a full queue drops the touch and a failed write is only
// logged, so presence recording can never block or fail a request.
type Recorder struct {
	updater OnlineUpdater
	logger  *slog.Logger

	jobs   chan touch
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
	now    func() time.Time
}

type touch struct {
	userID string
	seenAt time.Time
}

var errRecorderClosed = errors.New("presence recorder closed")

// NewRecorder constructs a background worker pool that records presence.
func NewRecorder(updater OnlineUpdater, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	rec := &Recorder{
		updater: updater,
		logger:  logger,
		jobs:    make(chan touch, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}

	rec.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go rec.worker()
	}

	return rec
}

// Touch schedules a last-seen update for the user. It never blocks; when the
// queue is full the touch is dropped.
func (r *Recorder) Touch(userID string) {
	if userID == "" {
		return
	}

	select {
	case <-r.ctx.Done():
		return
	default:
	}

	job := touch{userID: userID, seenAt: r.now().UTC()}

	select {
	case r.jobs <- job:
	default:
		r.logger.Debug("presence queue full, dropping touch", "userId", userID)
	}
}

// Shutdown waits for the worker pool to drain outstanding touches.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.once.Do(func() {
		r.cancel()
		close(r.jobs)
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for job := range r.jobs {
		r.handle(job)
	}
}

func (r *Recorder) handle(job touch) {
	if r.updater == nil {
		r.logger.Error("presence recorder missing updater")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.updater.UpdateOnline(ctx, job.userID, job.seenAt); err != nil {
		r.logger.Warn("record presence touch", "userId", job.userID, "error", err)
	}
}
