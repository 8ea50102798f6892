package jobs

// Event is pushed to the client that submitted a job.
type Event struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Class   string `json:"class,omitempty"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message,omitempty"`
}

const (
	EventCompleted = "job.completed"
	EventFailed    = "job.failed"
	EventText      = "node.text"
)

type Notifier interface {
	SendTo(clientID string, event Event)
}
