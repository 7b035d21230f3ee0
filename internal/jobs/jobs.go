package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const DefaultMaxTries = 5

// Job is one unit of asynchronous email work as it travels through the queue.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Status    JobStatus       `json:"status"`
	Attempts  int             `json:"attempts"`
	MaxTries  int             `json:"maxTries"`
	RunAt     time.Time       `json:"runAt"`
	LastError *string         `json:"lastError,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewJob creates a pending job with defaults.
func NewJob(t JobType, payloadJSON []byte, runAt time.Time) (Job, error) {
	if !t.IsValid() {
		return Job{}, ErrInvalidJobType
	}

	now := time.Now().UTC()

	if runAt.IsZero() {
		runAt = now
	}

	j := Job{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payloadJSON,
		Status:    JobPending,
		Attempts:  0,
		MaxTries:  DefaultMaxTries,
		RunAt:     runAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return j, nil
}

// Exhausted reports whether another failure should dead-letter the job.
func (j Job) Exhausted() bool {
	return j.Attempts >= j.MaxTries
}
