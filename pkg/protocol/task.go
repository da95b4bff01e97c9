package protocol

import "time"

// Task statuses.
const (
	TaskPending   = "pending"
	TaskCompleted = "completed"
)

// Task is one step of the guided experiment.
type Task struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// UserAction is a timestamped record of something the participant did.
type UserAction struct {
	ID    string    `json:"id"`
	Task  string    `json:"task"`
	Time  time.Time `json:"time"`
	Value string    `json:"value"`
}

// TaskUpdate is pushed to headsets and published on SubjectTasks.
type TaskUpdate struct {
	Type string `json:"type"`
	Data []Task `json:"data"`
}
