package events

import "time"

func NewRunStarted(runID string, maxAttempts int) *Event {
	return &Event{
		Type:      EventTypeRunStarted,
		RunID:     runID,
		Timestamp: time.Now(),
		Payload:   map[string]any{"max_attempts": maxAttempts},
	}
}

func NewAttemptFailed(runID string, attempt int, step string, err error) *Event {
	payload := map[string]any{
		"attempt": attempt,
		"step":    step,
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	return &Event{
		Type:      EventTypeAttemptFailed,
		RunID:     runID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// Completion is the summary carried by RUN_COMPLETED.
type Completion struct {
	Status   string
	Attempts int
	LoggedIn bool
	Salvaged bool
	Country  string
	Error    string
}

func NewRunCompleted(runID string, c Completion) *Event {
	payload := map[string]any{
		"status":    c.Status,
		"attempts":  c.Attempts,
		"logged_in": c.LoggedIn,
		"salvaged":  c.Salvaged,
	}
	if c.Country != "" {
		payload["country"] = c.Country
	}
	if c.Error != "" {
		payload["error"] = c.Error
	}
	return &Event{
		Type:      EventTypeRunCompleted,
		RunID:     runID,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
