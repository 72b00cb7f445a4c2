package domain

import (
	"fmt"
	"time"
)

// Error codes for operational failures surfaced through the API. Decision
// outcomes never use these: a non-transferable patient is a Forfeit with a
// ReasoningCode, not an error.
const (
	ErrInvalidInput   = "INVALID_INPUT"
	ErrRosterError    = "ROSTER_ERROR"
	ErrDecisionError  = "DECISION_ERROR"
	ErrRateLimit      = "RATE_LIMIT_EXCEEDED"
	ErrInternalServer = "INTERNAL_SERVER_ERROR"
)

// DecisionError is a standardized operational error response.
type DecisionError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *DecisionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewDecisionError creates a DecisionError with timestamp.
func NewDecisionError(code, message, details, requestID string) *DecisionError {
	return &DecisionError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}
