package jobrunner

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type TriggerRequest struct {
	Payload map[string]any `json:"payload"`
}

type TriggerResponse struct {
	ID string `json:"id"`
}

type RunError struct {
	Message string `json:"message"`
}

type RunResponse struct {
	ID          string         `json:"id"`
	TaskID      string         `json:"taskIdentifier"`
	Status      string         `json:"status"`
	Output      map[string]any `json:"output,omitempty"`
	Error       *RunError      `json:"error,omitempty"`
	CreatedAt   string         `json:"createdAt,omitempty"`
	UpdatedAt   string         `json:"updatedAt,omitempty"`
	CompletedAt string         `json:"completedAt,omitempty"`
}

// Error is a non-2xx response from the job runner.
type Error struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	RequestID  string `json:"request_id"`
	Body       string `json:"body"`
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("job runner error (status %d, request %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("job runner error (status %d): %s", e.StatusCode, e.Message)
}

func (e *Error) IsRetryable() bool {
	return e.IsServerError() || e.StatusCode == 429
}

func (e *Error) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func (e *Error) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// newError reads the message from an {"error"} or {"message"} body, falling
// back to the status text.
func newError(resp *http.Response, body []byte) *Error {
	apiErr := &Error{
		StatusCode: resp.StatusCode,
		Message:    http.StatusText(resp.StatusCode),
		RequestID:  resp.Header.Get("X-Request-ID"),
		Body:       string(body),
	}

	var decoded struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &decoded) == nil {
		switch {
		case decoded.Error != "":
			apiErr.Message = decoded.Error
		case decoded.Message != "":
			apiErr.Message = decoded.Message
		}
	}

	return apiErr
}
