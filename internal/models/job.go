package models

import "time"

// TaskStatus is the lifecycle state of one batch item
type TaskStatus string

const (
	TaskQueued  TaskStatus = "Queued"
	TaskRunning TaskStatus = "Running"
	TaskDone    TaskStatus = "Done"
	TaskFailed  TaskStatus = "Failed"
)

// Terminal reports whether the status is final
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskFailed
}

// Task is one file inside a batch job
type Task struct {
	ID           string     `json:"id"`
	FileName     string     `json:"file_name"`
	Size         int64      `json:"size"`
	Status       TaskStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	SubmissionID string     `json:"submission_id,omitempty"`
}

// Job is a batch grading run. The whole struct is the unit of persistence.
type Job struct {
	ID          string     `json:"id"`
	Total       int        `json:"total"`
	Completed   int        `json:"completed"`
	Failed      int        `json:"failed"`
	Parallelism int        `json:"parallelism"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Items       []Task     `json:"items"`
}

// Clone returns a deep copy safe to hand out of a lock
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.Items = append([]Task(nil), j.Items...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

// TaskUpdate is a partial change to a task
type TaskUpdate struct {
	Status       TaskStatus
	Error        string
	SubmissionID string
}
