// Package scheduler runs order sync jobs on a bounded worker pool and
// triggers them periodically for every connected store.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fbsamples/cp-reference/internal/domain/integration"
	"github.com/fbsamples/cp-reference/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Sync Job Types
// ---------------------------------------------------------------------------

// SyncJobStatus represents the status of a sync job
type SyncJobStatus string

const (
	SyncJobStatusPending   SyncJobStatus = "PENDING"
	SyncJobStatusRunning   SyncJobStatus = "RUNNING"
	SyncJobStatusCompleted SyncJobStatus = "COMPLETED"
	SyncJobStatusFailed    SyncJobStatus = "FAILED"
	SyncJobStatusExpired   SyncJobStatus = "EXPIRED"
	SyncJobStatusCancelled SyncJobStatus = "CANCELLED"
)

// SyncTrigger tells what enqueued a job
type SyncTrigger string

const (
	SyncTriggerPeriodic SyncTrigger = "periodic"
	SyncTriggerManual   SyncTrigger = "manual"
)

// SyncJob is one queued sync run of a store.
// It must not start before RunAt and is dropped if still waiting at ExpiresAt.
type SyncJob struct {
	ID          uuid.UUID
	StoreID     uuid.UUID
	Trigger     SyncTrigger
	Status      SyncJobStatus
	RunAt       time.Time
	ExpiresAt   time.Time
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time

	Report *integration.SyncReport
}

// NewSyncJob creates a pending job that becomes runnable after delay
func NewSyncJob(storeID uuid.UUID, trigger SyncTrigger, delay, expiry time.Duration) *SyncJob {
	now := time.Now()
	return &SyncJob{
		ID:        uuid.New(),
		StoreID:   storeID,
		Trigger:   trigger,
		Status:    SyncJobStatusPending,
		RunAt:     now.Add(delay),
		ExpiresAt: now.Add(expiry),
	}
}

// Start marks the job as running
func (j *SyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the report of a finished run
func (j *SyncJob) Complete(report *integration.SyncReport) {
	now := time.Now()
	j.Status = SyncJobStatusCompleted
	j.CompletedAt = &now
	j.Report = report
}

// Fail marks the job as failed. report may be nil.
func (j *SyncJob) Fail(err string, report *integration.SyncReport) {
	now := time.Now()
	j.Status = SyncJobStatusFailed
	j.CompletedAt = &now
	j.Error = err
	j.Report = report
}

// Expire marks a job that could not start before ExpiresAt
func (j *SyncJob) Expire() {
	now := time.Now()
	j.Status = SyncJobStatusExpired
	j.CompletedAt = &now
}

// Cancel marks a job dropped because the scheduler stopped
func (j *SyncJob) Cancel() {
	now := time.Now()
	j.Status = SyncJobStatusCancelled
	j.CompletedAt = &now
}

// IsExpired reports whether the job can no longer start at now
func (j *SyncJob) IsExpired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && now.After(j.ExpiresAt)
}

// ---------------------------------------------------------------------------
// SyncRunner Interface
// ---------------------------------------------------------------------------

// SyncRunner runs the sync pipeline of one store
type SyncRunner interface {
	RunSync(ctx context.Context, storeID uuid.UUID) (*integration.SyncReport, error)
}

// ---------------------------------------------------------------------------
// SyncSchedulerConfig
// ---------------------------------------------------------------------------

// SyncSchedulerConfig holds configuration for the sync scheduler
type SyncSchedulerConfig struct {
	// Workers is the maximum number of concurrent sync runs
	Workers int
	// QueueSize bounds the number of jobs waiting for a worker
	QueueSize int
	// RunTimeout bounds a run, and the time a queued job may wait before it expires
	RunTimeout time.Duration
	// MaxHistory is the number of finished jobs kept for monitoring
	MaxHistory int
}

// DefaultSyncSchedulerConfig returns default configuration
func DefaultSyncSchedulerConfig() SyncSchedulerConfig {
	return SyncSchedulerConfig{
		Workers:    4,
		QueueSize:  256,
		RunTimeout: 5 * time.Minute,
		MaxHistory: 100,
	}
}

// Validate validates the configuration
func (c *SyncSchedulerConfig) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.MaxHistory < 0 {
		return ErrInvalidConfig
	}
	if c.RunTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncScheduler
// ---------------------------------------------------------------------------

// SyncScheduler executes sync jobs on a fixed worker pool. Failed runs are
// recorded and never retried; the next periodic trigger runs the store again.
type SyncScheduler struct {
	config SyncSchedulerConfig
	runner SyncRunner
	logger *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	// Finished jobs, newest first
	historyMu sync.RWMutex
	history   []*SyncJob
}

// NewSyncScheduler creates a new sync scheduler
func NewSyncScheduler(config SyncSchedulerConfig, runner SyncRunner, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SyncScheduler{
		config:  config,
		runner:  runner,
		logger:  logger,
		jobs:    make(chan *SyncJob, config.QueueSize),
		history: make([]*SyncJob, 0, config.MaxHistory),
	}, nil
}

// Start starts the worker pool
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("Sync scheduler started",
		zap.Int("workers", s.config.Workers),
		zap.Duration("run_timeout", s.config.RunTimeout),
	)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Sync scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler accepts jobs
func (s *SyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// SubmitJob queues a job without blocking
func (s *SyncScheduler) SubmitJob(job *SyncJob) error {
	// Held across the send so Stop cannot close the channel underneath it
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("store_id", job.StoreID.String()),
			zap.String("trigger", string(job.Trigger)),
			zap.Time("run_at", job.RunAt),
		)
		return nil
	default:
		return ErrJobQueueFull
	}
}

// ScheduleStore queues a run of storeID after delay. The returned job is a
// snapshot taken before the job reached the queue; the worker owns the queued one.
func (s *SyncScheduler) ScheduleStore(storeID uuid.UUID, trigger SyncTrigger, delay time.Duration) (SyncJob, error) {
	job := NewSyncJob(storeID, trigger, delay, s.config.RunTimeout)
	snapshot := *job
	if err := s.SubmitJob(job); err != nil {
		return SyncJob{}, err
	}
	return snapshot, nil
}

// TriggerStore queues an immediate run of storeID
func (s *SyncScheduler) TriggerStore(storeID uuid.UUID) (SyncJob, error) {
	return s.ScheduleStore(storeID, SyncTriggerManual, 0)
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("Sync worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			s.drain()
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

// drain records the jobs left in the queue as cancelled
func (s *SyncScheduler) drain() {
	for job := range s.jobs {
		job.Cancel()
		s.addToHistory(job)
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	if ctx.Err() != nil {
		job.Cancel()
		s.addToHistory(job)
		return
	}
	if wait := time.Until(job.RunAt); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			job.Cancel()
			s.addToHistory(job)
			return
		case <-timer.C:
		}
	}

	if job.IsExpired(time.Now()) {
		job.Expire()
		s.logger.Warn("Sync job expired before it could start",
			zap.String("job_id", job.ID.String()),
			zap.String("store_id", job.StoreID.String()),
			zap.Time("expires_at", job.ExpiresAt),
		)
		s.addToHistory(job)
		return
	}

	job.Start()
	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("store_id", job.StoreID.String()),
		zap.String("trigger", string(job.Trigger)),
	)
	log.Info("Processing sync job")

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()
	runCtx, span := telemetry.StartServiceSpan(runCtx, "sync_scheduler", "process_job",
		telemetry.WithSpanKind(trace.SpanKindConsumer),
		telemetry.WithAttribute(telemetry.SpanAttrStoreID, job.StoreID.String()),
		telemetry.WithAttribute("sync.job_id", job.ID.String()),
		telemetry.WithAttribute("sync.trigger", string(job.Trigger)),
	)
	defer span.End()

	report, err := s.runner.RunSync(runCtx, job.StoreID)
	if err != nil {
		telemetry.RecordError(span, err)
		job.Fail(err.Error(), report)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("Sync job timed out", zap.Duration("run_timeout", s.config.RunTimeout), zap.Error(err))
		} else {
			log.Error("Sync job failed", zap.Error(err))
		}
		s.addToHistory(job)
		return
	}

	telemetry.SetOK(span)
	job.Complete(report)
	fields := []zap.Field{}
	if report != nil {
		fields = append(fields,
			zap.String("status", report.Status.String()),
			zap.Int("fetched", len(report.Fetched)),
			zap.Int("acknowledged", len(report.Acknowledged)),
		)
	}
	log.Info("Sync job completed", fields...)
	s.addToHistory(job)
}

func (s *SyncScheduler) addToHistory(job *SyncJob) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	if s.config.MaxHistory == 0 {
		return
	}
	s.history = append([]*SyncJob{job}, s.history...)
	if len(s.history) > s.config.MaxHistory {
		s.history = s.history[:s.config.MaxHistory]
	}
}

// GetJobHistory returns up to limit finished jobs, newest first. A non-positive limit returns all.
func (s *SyncScheduler) GetJobHistory(limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*SyncJob, limit)
	copy(result, s.history[:limit])
	return result
}

// GetJobHistoryByStore returns up to limit finished jobs of one store, newest first
func (s *SyncScheduler) GetJobHistoryByStore(storeID uuid.UUID, limit int) []*SyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	result := make([]*SyncJob, 0, limit)
	for _, job := range s.history {
		if job.StoreID == storeID {
			result = append(result, job)
			if len(result) >= limit {
				break
			}
		}
	}
	return result
}
