package marketplace

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oms/backend/internal/domain/shared"
)

var (
	ErrJobNotFound       = errors.New("marketplace: sync job not found")
	ErrJobAlreadyRunning = errors.New("marketplace: a job of this type is already running for the connection")
	ErrJobNotPending     = errors.New("marketplace: job is not pending")
	ErrJobNotRunning     = errors.New("marketplace: job is not running")
	ErrJobNotRetryable   = errors.New("marketplace: only failed jobs can be retried")
	ErrInvalidJobType    = errors.New("marketplace: invalid job type")
)

// JobType identifies the kind of feed a sync job drains
type JobType string

const (
	JobTypeOrder      JobType = "ORDER"
	JobTypeInventory  JobType = "INVENTORY"
	JobTypeSettlement JobType = "SETTLEMENT"
)

// IsValid returns true if the job type is known
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeOrder, JobTypeInventory, JobTypeSettlement:
		return true
	default:
		return false
	}
}

// String returns the string representation of the job type
func (t JobType) String() string {
	return string(t)
}

// AllJobTypes returns the closed set of job types
func AllJobTypes() []JobType {
	return []JobType{JobTypeOrder, JobTypeInventory, JobTypeSettlement}
}

// JobStatus represents the lifecycle state of a sync job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// IsValid returns true if the status is known
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusSucceeded, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsFinal returns true for terminal job states
func (s JobStatus) IsFinal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// SyncJob is one run of a marketplace sync operation.
// Lifecycle: PENDING -> RUNNING -> SUCCEEDED | FAILED. Failed jobs are never
// resurrected; retries create a new job seeded with the prior cursor.
// At most one RUNNING job exists per (connection, job type); the check-and-set
// lives in the repository's TryStart.
type SyncJob struct {
	shared.CompanyEntity
	ConnectionID uuid.UUID
	JobType      JobType
	Status       JobStatus
	// Cursor is the job's durable checkpoint: it only moves after the
	// page it points past has been committed
	Cursor      string
	StartedAt   *time.Time
	CompletedAt *time.Time
	ErrorDetail string
	// RetryOf references the failed job this one resumes, if any
	RetryOf *uuid.UUID

	// Page results
	PagesFetched   int
	RecordsTotal   int
	RecordsSynced  int
	RecordsSkipped int
}

// NewSyncJob creates a pending sync job seeded with the given cursor
func NewSyncJob(companyID, connectionID uuid.UUID, jobType JobType, cursor string) (*SyncJob, error) {
	if connectionID == uuid.Nil {
		return nil, ErrConnectionNotFound
	}
	if !jobType.IsValid() {
		return nil, ErrInvalidJobType
	}
	return &SyncJob{
		CompanyEntity: shared.NewCompanyEntity(companyID),
		ConnectionID:  connectionID,
		JobType:       jobType,
		Status:        JobStatusPending,
		Cursor:        cursor,
	}, nil
}

// NewRetryJob creates a pending job resuming a failed job's cursor.
// The failed job record is left untouched.
func NewRetryJob(failed *SyncJob) (*SyncJob, error) {
	if failed.Status != JobStatusFailed {
		return nil, ErrJobNotRetryable
	}
	job, err := NewSyncJob(failed.CompanyID, failed.ConnectionID, failed.JobType, failed.Cursor)
	if err != nil {
		return nil, err
	}
	priorID := failed.ID
	job.RetryOf = &priorID
	return job, nil
}

// Start marks the job running. State-level guard only; the cross-process
// single-running invariant is enforced by the repository's atomic TryStart.
func (j *SyncJob) Start() error {
	if j.Status != JobStatusPending {
		return ErrJobNotPending
	}
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Touch()
	return nil
}

// RecordPage accumulates the results of one committed page and advances the
// job's cursor checkpoint.
func (j *SyncJob) RecordPage(cursor string, total, synced, skipped int) {
	j.Cursor = cursor
	j.PagesFetched++
	j.RecordsTotal += total
	j.RecordsSynced += synced
	j.RecordsSkipped += skipped
	j.Touch()
}

// Succeed marks the job complete. A run that exhausted its page budget
// before reaching the end of the feed still succeeds; the stored cursor is
// resumable by the next scheduled run.
func (j *SyncJob) Succeed() error {
	if j.Status != JobStatusRunning {
		return ErrJobNotRunning
	}
	now := time.Now()
	j.Status = JobStatusSucceeded
	j.CompletedAt = &now
	j.Touch()
	return nil
}

// Fail marks the job failed with the error detail
func (j *SyncJob) Fail(detail string) error {
	if j.Status != JobStatusRunning {
		return ErrJobNotRunning
	}
	now := time.Now()
	j.Status = JobStatusFailed
	j.CompletedAt = &now
	j.ErrorDetail = detail
	j.Touch()
	return nil
}

// JobFilter defines audit query criteria for sync jobs
type JobFilter struct {
	ConnectionID *uuid.UUID
	JobType      *JobType
	Status       *JobStatus
	Since        *time.Time
	Until        *time.Time
	SortBy       string
	SortDir      string
	Page         int
	PageSize     int
}
