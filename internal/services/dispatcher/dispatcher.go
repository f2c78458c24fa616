package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/nuntius/internal/common"
	"github.com/ternarybob/nuntius/internal/interfaces"
	"github.com/ternarybob/nuntius/internal/models"
)

// pollInterval is how often the dispatcher looks for pending work
const pollInterval = 2 * time.Second

// Dispatcher pulls pending jobs in (priority desc, created_at asc) order into
// a bounded worker pool. Crashed or lost runs are reclaimed by the stuck-job
// sweep, not by acknowledgement.
type Dispatcher struct {
	storage interfaces.StorageManager
	worker  interfaces.CrawlWorker
	limits  *queueLimits
	jobs    *common.JobsConfig
	logger  arbor.ILogger

	slots   chan struct{}
	running map[string]context.CancelFunc
	mu      sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher over the given worker pool size
func New(storage interfaces.StorageManager, worker interfaces.CrawlWorker, jobs *common.JobsConfig, dispatch *common.DispatcherConfig, logger arbor.ILogger) *Dispatcher {
	maxConcurrent := jobs.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		storage: storage,
		worker:  worker,
		limits:  newQueueLimits(dispatch),
		jobs:    jobs,
		logger:  logger,
		slots:   make(chan struct{}, maxConcurrent),
		running: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the poll loop
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.pollLoop()
	d.logger.Info().Int("max_concurrent", cap(d.slots)).Msg("Dispatcher started")
}

// Stop cancels all running jobs and waits for the pool to drain
func (d *Dispatcher) Stop() {
	d.cancel()

	d.mu.Lock()
	for _, cancel := range d.running {
		cancel()
	}
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info().Msg("Dispatcher stopped")
}

// RunningCount returns the number of jobs currently executing
func (d *Dispatcher) RunningCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.running)
}

// Cancel requests cancellation of a running job. Returns false when the job
// is not executing in this process.
func (d *Dispatcher) Cancel(jobID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancel, ok := d.running[jobID]
	if ok {
		cancel()
	}
	return ok
}

func (d *Dispatcher) pollLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.dispatchPending()
		}
	}
}

// dispatchPending claims as many pending jobs as free slots and rate budget
// allow
func (d *Dispatcher) dispatchPending() {
	free := cap(d.slots) - len(d.slots)
	if free <= 0 {
		return
	}

	pending, err := d.storage.JobStorage().GetPendingJobs(d.ctx, free)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to query pending jobs")
		return
	}

	for _, job := range pending {
		if d.ctx.Err() != nil {
			return
		}
		if !d.limits.limiter(queueForJob(job)).Allow() {
			return
		}

		select {
		case d.slots <- struct{}{}:
		default:
			return
		}

		if !d.claim(job) {
			<-d.slots
			continue
		}

		d.wg.Add(1)
		go d.run(job)
	}
}

// claim transitions the job pending->running; a lost race is not an error
func (d *Dispatcher) claim(job *models.CrawlJob) bool {
	taskID := common.NewCorrelationID()
	err := d.storage.JobStorage().MarkJobRunning(d.ctx, job.ID, taskID, time.Now().UTC())
	if err != nil {
		if common.KindOf(err) == common.KindStateViolation {
			return false
		}
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to claim job")
		return false
	}
	job.Status = models.JobStatusRunning
	job.ExternalTaskID = taskID
	return true
}

// run executes one claimed job under the execution timeout
func (d *Dispatcher) run(job *models.CrawlJob) {
	defer d.wg.Done()
	defer func() { <-d.slots }()

	timeout := time.Duration(d.jobs.ExecutionTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}

	jobCtx, jobCancel := context.WithTimeout(d.ctx, timeout)
	d.mu.Lock()
	d.running[job.ID] = jobCancel
	d.mu.Unlock()

	defer func() {
		jobCancel()
		d.mu.Lock()
		delete(d.running, job.ID)
		d.mu.Unlock()
	}()

	result, err := d.worker.Execute(jobCtx, job)
	if err != nil {
		d.handleFailure(job, err)
		return
	}

	if err := d.storage.JobStorage().MarkJobCompleted(context.Background(), job.ID, time.Now().UTC(), result.ArticlesFound, result.ArticlesSaved); err != nil {
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job completed")
	}
}

// handleFailure applies the retry policy: retryable kinds requeue after
// their backoff while attempts remain, everything else fails terminally.
func (d *Dispatcher) handleFailure(job *models.CrawlJob, jobErr error) {
	kind := common.KindOf(jobErr)
	maxAttempts := common.MaxAttempts("crawl")
	attempt := job.RetryCount

	log := d.logger.WithCorrelationId(job.CorrelationID)

	message := jobErr.Error()
	var ce *common.Error
	if errors.As(jobErr, &ce) && ce.Message != "" {
		message = ce.Message
	}

	if !kind.IsRetryable() || attempt >= maxAttempts-1 {
		if err := d.storage.JobStorage().MarkJobFailed(context.Background(), job.ID, time.Now().UTC(), message); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job failed")
			return
		}
		if kind.IsRetryable() {
			log.Error().
				Str("job_id", job.ID).
				Str("kind", string(kind)).
				Int("attempts", attempt+1).
				Msg("ALERT: job exhausted retries")
		} else {
			log.Warn().Err(jobErr).Str("job_id", job.ID).Str("kind", string(kind)).Msg("Job failed")
		}
		return
	}

	delay := kind.RetryDelay(attempt)
	if ce != nil && ce.RetryAfter > delay {
		delay = ce.RetryAfter
	}

	log.Warn().
		Err(jobErr).
		Str("job_id", job.ID).
		Str("kind", string(kind)).
		Dur("retry_in", delay).
		Int("attempt", attempt+1).
		Msg("Job failed, scheduling retry")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		select {
		case <-time.After(delay):
		case <-d.ctx.Done():
			// Shutdown requeues immediately so the job is not lost
		}
		if err := d.storage.JobStorage().RequeueJob(context.Background(), job.ID, message); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to requeue job")
		}
	}()
}

var _ interfaces.Dispatcher = (*Dispatcher)(nil)
