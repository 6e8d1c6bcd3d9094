// Package audit captures policy lifecycle actions for operational
// visibility. Events are emitted from domain logic, buffered through a
// channel-fed worker, and persisted by a pluggable sink (memory or Kafka).
//
// These are ops-grade events: emission is fail-open, so an audit outage
// never fails a business operation.
package audit

import (
	"context"
	"time"

	id "planlens/pkg/domain"
)

// Action names what happened to a policy analysis.
type Action string

const (
	ActionPolicyCreated Action = "policy_created"
	ActionPolicyUpdated Action = "policy_updated"
	ActionPolicyDeleted Action = "policy_deleted"
	ActionFileRetained  Action = "policy_file_retained"
)

// Event is emitted from domain logic. Keep it transport-agnostic so sinks
// can fan out.
type Event struct {
	Timestamp time.Time   `json:"timestamp"`
	TenantID  id.TenantID `json:"tenant_id"`
	PolicyID  string      `json:"policy_id"`
	Action    Action      `json:"action"`
	RequestID string      `json:"request_id,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
