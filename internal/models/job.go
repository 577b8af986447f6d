package models

import "time"

// JobStatus is the lifecycle state of an asynchronous check.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// CheckJob is the queued form of an Intent. The attachment, if any, lives
// in object storage under FileKey until a worker picks the job up.
type CheckJob struct {
	ID        string       `json:"id"`
	Prompt    string       `json:"prompt"`
	Provider  ProviderKind `json:"provider"`
	Model     string       `json:"model,omitempty"`
	WebSearch bool         `json:"webSearch"`
	FileKey   string       `json:"fileKey,omitempty"`
	FileName  string       `json:"fileName,omitempty"`
	MimeType  string       `json:"mimeType,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

// CheckResult is what a client polls for.
type CheckResult struct {
	JobID       string    `json:"jobId"`
	Status      JobStatus `json:"status"`
	Verdict     string    `json:"verdict,omitempty"`
	Probability *int      `json:"probability,omitempty"`
	Error       string    `json:"error,omitempty"`
	ErrorKind   ErrorKind `json:"errorKind,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}
