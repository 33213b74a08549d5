// Package scheduler runs reconciliation on a cron timetable. Two daily jobs
// are registered by default, one morning and one evening, and every firing
// delegates to the same sync entry point the HTTP triggers use.
package scheduler

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/iancoleman/strcase"
	"go.uber.org/zap"

	"github.com/zzin/campsync/sync"
)

// SyncRunner executes one reconciliation run.
type SyncRunner interface {
	PerformSync(ctx context.Context) (sync.SyncResult, error)
}

type job struct {
	key         string
	description string
	trigger     Trigger
}

// Coordinator owns the scheduled sync jobs. Jobs are registered before
// Start; each runs on its own goroutine until Stop or context cancellation.
type Coordinator struct {
	logger *zap.SugaredLogger
	runner SyncRunner
	nowFn  func() time.Time

	mu         gosync.Mutex
	jobs       []*job
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// New creates a coordinator with no jobs registered.
func New(logger *zap.SugaredLogger, runner SyncRunner) *Coordinator {
	return &Coordinator{
		logger: logger,
		runner: runner,
		nowFn:  time.Now,
	}
}

// AddCronJob registers a job firing on the given cron expression, evaluated
// in the given timezone. The job key is the kebab-cased description.
func (c *Coordinator) AddCronJob(description, expr, timezone string) error {
	trigger, err := NewCronTrigger(expr, timezone)
	if err != nil {
		return err
	}
	c.AddJob(description, trigger)
	return nil
}

// AddJob registers a job with an explicit trigger.
func (c *Coordinator) AddJob(description string, trigger Trigger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, &job{
		key:         strcase.ToKebab(description),
		description: description,
		trigger:     trigger,
	})
}

// Start launches one goroutine per registered job. It is not blocking;
// use Stop to shut the jobs down. Calling Start twice is an error.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFunc != nil {
		return errors.New("scheduler already started")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.done = make(chan struct{})

	var wg gosync.WaitGroup
	for _, j := range c.jobs {
		wg.Add(1)
		go func(j *job) {
			defer wg.Done()
			c.runJobLoop(jobCtx, j)
		}(j)
	}
	go func() {
		wg.Wait()
		close(c.done)
	}()

	c.logger.Infof("scheduler started with %d jobs", len(c.jobs))
	return nil
}

// Stop cancels all job loops and waits for them to finish. Safe to call
// more than once. The job registry itself is retained so JobStatus can
// still enumerate the configured jobs after shutdown.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	cancel, done := c.cancelFunc, c.done
	c.cancelFunc = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.logger.Info("scheduler stopped")
}

// JobStatus reports each registered job key mapped to whether the
// coordinator is running it. Registered jobs stay listed after Stop with a
// false value; there is no separate paused state.
func (c *Coordinator) JobStatus() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	running := c.cancelFunc != nil
	statuses := make(map[string]bool, len(c.jobs))
	for _, j := range c.jobs {
		statuses[j.key] = running
	}
	return statuses
}

func (c *Coordinator) runJobLoop(ctx context.Context, j *job) {
	for {
		next, err := j.trigger.Next(c.nowFn())
		if err != nil {
			c.logger.Errorf("job %s: cannot compute next firing: %v", j.key, err)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.runJob(ctx, j)
	}
}

// runJob fires one scheduled run. Failures are logged, never propagated;
// a broken run must not take the job loop down with it.
func (c *Coordinator) runJob(ctx context.Context, j *job) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("job %s: panic during sync: %v", j.key, r)
		}
	}()

	c.logger.Infof("job %s: starting scheduled sync", j.key)
	result, err := c.runner.PerformSync(ctx)
	if err != nil {
		if errors.Is(err, sync.ErrSyncInProgress) {
			c.logger.Warnf("job %s: skipped, a sync is already running", j.key)
			return
		}
		c.logger.Errorf("job %s: sync failed: %v", j.key, err)
		return
	}
	if !result.Success {
		c.logger.Warnf("job %s: run %s finished with %d errors", j.key, result.RunID, len(result.Errors))
		return
	}
	c.logger.Infof("job %s: run %s succeeded, %d campaigns, %d pages updated",
		j.key, result.RunID, result.ProcessedCampaigns, result.UpdatedPages)
}
