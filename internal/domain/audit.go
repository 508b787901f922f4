package domain

import "time"

// AuditEvent is an append-only record of a verification outcome.
type AuditEvent struct {
	EventID          string         `json:"id" dynamodbav:"event_id"`
	AccountID        string         `json:"account_id" dynamodbav:"account_id"`
	VerificationType string         `json:"verification_type" dynamodbav:"verification_type"`
	Action           string         `json:"action" dynamodbav:"action"`
	PreviousStatus   string         `json:"previous_status" dynamodbav:"previous_status"`
	NewStatus        string         `json:"new_status" dynamodbav:"new_status"`
	Metadata         map[string]any `json:"metadata,omitempty" dynamodbav:"metadata,omitempty"`
	ClientIP         string         `json:"client_ip,omitempty" dynamodbav:"client_ip,omitempty"`
	UserAgent        string         `json:"user_agent,omitempty" dynamodbav:"user_agent,omitempty"`
	Timestamp        time.Time      `json:"timestamp" dynamodbav:"timestamp"`
}
