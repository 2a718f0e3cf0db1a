// Package audit provides the fire-and-forget audit trail. Services emit
// an event for every create/update/delete/sync across tenants, roles,
// permissions and assignments; sink failures never fail the originating
// operation.
package audit

import (
	"log/slog"
	"sync"
	"time"
)

// Action identifies what happened. Values are stable identifiers
// consumed by host-side sinks.
type Action string

const (
	ActionTenantCreate Action = "tenant.create"
	ActionTenantUpdate Action = "tenant.update"
	ActionTenantDelete Action = "tenant.delete"

	ActionRoleCreate Action = "role.create"
	ActionRoleUpdate Action = "role.update"
	ActionRoleDelete Action = "role.delete"

	ActionRolePermissionsGrant  Action = "role.permissions.grant"
	ActionRolePermissionsSync   Action = "role.permissions.sync"
	ActionRolePermissionsRevoke Action = "role.permissions.revoke"

	ActionUserRoleAssign Action = "user.role.assign"
	ActionUserRoleSync   Action = "user.role.sync"
	ActionUserRoleRevoke Action = "user.role.revoke"

	ActionPermissionCreate Action = "permission.create"
	ActionPermissionUpdate Action = "permission.update"
	ActionPermissionDelete Action = "permission.delete"
)

// Event is one audit record. Before/After carry the stored record
// snapshots where a mutation has them.
type Event struct {
	Action    Action         `json:"action"`
	TenantID  string         `json:"tenantId,omitempty"`
	Model     string         `json:"model,omitempty"`
	RecordID  string         `json:"recordId,omitempty"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Handler consumes audit events. Handlers must be safe for concurrent use.
type Handler func(Event)

// Trail fans audit events out to registered handlers.
type Trail struct {
	mu       sync.RWMutex
	handlers []Handler
	logger   *slog.Logger
}

// NewTrail creates an audit trail. A nil logger falls back to slog.Default.
func NewTrail(logger *slog.Logger) *Trail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trail{logger: logger}
}

// Register adds a handler. There is no unregister; a trail lives as long
// as the engine that owns it.
func (t *Trail) Register(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, h)
}

// Emit stamps the event and delivers it to every handler. A panicking
// handler is recovered and logged; Emit never reports failure to the
// mutation that triggered it.
func (t *Trail) Emit(event Event) {
	if t == nil {
		return
	}
	event.Timestamp = time.Now().UTC()

	t.mu.RLock()
	handlers := make([]Handler, len(t.handlers))
	copy(handlers, t.handlers)
	t.mu.RUnlock()

	for _, h := range handlers {
		t.deliver(h, event)
	}
}

func (t *Trail) deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("audit handler panicked", "action", event.Action, "panic", r)
		}
	}()
	h(event)
}
