package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ours334/player/internal/shared"
)

// DefaultMirrorQueueSize bounds the mirror queue. The queue only ever holds
// single-row copy jobs, so a modest bound covers realistic bursts.
const DefaultMirrorQueueSize = 256

// mirrorJobTimeout caps how long one mirror job may run.
const mirrorJobTimeout = 10 * time.Second

// MirrorJob copies one committed write to the secondary backend.
type MirrorJob struct {
	Name string
	Run  func(ctx context.Context) error
}

// Mirror executes mirror jobs on a single background worker. Enqueue never
// blocks and never reports failure to the caller; mirroring is strictly
// best-effort.
type Mirror struct {
	queue     chan MirrorJob
	logger    *log.Logger
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewMirror starts the worker goroutine.
func NewMirror(size int, logger *log.Logger) *Mirror {
	if size <= 0 {
		size = DefaultMirrorQueueSize
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	m := &Mirror{
		queue:  make(chan MirrorJob, size),
		logger: logger,
	}
	m.wg.Add(1)
	go m.worker()
	return m
}

// Enqueue submits a job. When the queue is full the job is dropped and the
// drop is logged; the primary write has already committed, so the worst case
// is a stale secondary until the next sync run.
func (m *Mirror) Enqueue(name string, run func(ctx context.Context) error) {
	if run == nil {
		return
	}
	select {
	case m.queue <- MirrorJob{Name: name, Run: run}:
	default:
		m.logger.Warn("mirror queue full, dropping job", "job", name)
	}
}

// Close stops accepting jobs, drains the queue and waits for the worker.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() {
		close(m.queue)
	})
	m.wg.Wait()
}

func (m *Mirror) worker() {
	defer m.wg.Done()
	for job := range m.queue {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorJobTimeout)
		if err := job.Run(ctx); err != nil {
			m.logger.Warn("mirror job failed", "job", job.Name, "error", err)
		}
		cancel()
	}
}
