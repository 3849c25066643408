package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yukikurage/task-planner/internal/models"
	"github.com/yukikurage/task-planner/internal/repository"
)

// Persister writes snapshots to the repository once they stop changing for
// the configured delay. Only the latest snapshot is ever written.
type Persister struct {
	repo   repository.TaskRepository
	delay  time.Duration
	logger *slog.Logger

	mu      sync.Mutex
	pending []models.Task
	dirty   bool
	timer   *time.Timer

	saving sync.Mutex
}

// NewPersister creates a new Persister
func NewPersister(repo repository.TaskRepository, delay time.Duration, logger *slog.Logger) *Persister {
	return &Persister{repo: repo, delay: delay, logger: logger}
}

// Notify schedules tasks to be saved. The caller must not modify tasks
// afterwards.
func (p *Persister) Notify(tasks []models.Task) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = tasks
	p.dirty = true
	if p.timer == nil {
		p.timer = time.AfterFunc(p.delay, p.fire)
		return
	}
	p.timer.Reset(p.delay)
}

func (p *Persister) fire() {
	if err := p.save(context.Background()); err != nil {
		p.logger.Error("failed to persist tasks", slog.Any("error", err))
	}
}

// Flush saves the pending snapshot now, if there is one.
func (p *Persister) Flush(ctx context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()
	return p.save(ctx)
}

// Pending reports whether a snapshot is waiting to be saved.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

func (p *Persister) save(ctx context.Context) error {
	p.saving.Lock()
	defer p.saving.Unlock()

	p.mu.Lock()
	if !p.dirty {
		p.mu.Unlock()
		return nil
	}
	tasks := p.pending
	p.dirty = false
	p.mu.Unlock()

	if err := p.repo.Save(ctx, tasks); err != nil {
		p.mu.Lock()
		// Retry on the next flush unless a newer snapshot already arrived.
		if !p.dirty {
			p.pending = tasks
			p.dirty = true
		}
		p.mu.Unlock()
		return fmt.Errorf("failed to save %d tasks: %w", len(tasks), err)
	}

	p.logger.Debug("persisted tasks", slog.Int("count", len(tasks)))
	return nil
}
