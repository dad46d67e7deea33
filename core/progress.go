package core

import "time"

// ProgressEvent is a transient status update for a task or document. Events
// are consumed by live subscribers only and never persisted.
type ProgressEvent struct {
	TopicID   string    `json:"topic_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"` // 0-100, non-decreasing per topic
	Terminal  bool      `json:"terminal,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewProgressEvent stamps a progress event with the current UTC time.
func NewProgressEvent(topicID, status string, progress int) ProgressEvent {
	return ProgressEvent{
		TopicID:   topicID,
		Status:    status,
		Progress:  progress,
		Timestamp: time.Now().UTC(),
	}
}
