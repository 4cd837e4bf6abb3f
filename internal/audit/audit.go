// Package audit appends immutable records of sensitive actions. Entries are
// written strictly after the gated action succeeded; a failed write never
// fails the request it describes.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/ids"
	"github.com/atelierhq/atelier/internal/obs"
)

// Action taxonomy.
const (
	ActionRoleChanged      = "role_changed"
	ActionRecordDeleted    = "record_deleted"
	ActionInviteCreated    = "invite_created"
	ActionInviteSent       = "invite_sent"
	ActionInviteRedeemed   = "invite_redeemed"
	ActionSessionStarted   = "session_started"
	ActionSessionEnded     = "session_ended"
	ActionMinutesFinalized = "minutes_finalized"
	ActionWorkshopCreated  = "workshop_created"
)

// Entry is one append-only audit record. Once stored it is never mutated or
// deleted.
type Entry struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	ActorID       string         `json:"actor_id"`
	ActorName     string         `json:"actor_name"`
	TargetType    string         `json:"target_type"`
	TargetID      string         `json:"target_id"`
	Changes       map[string]any `json:"changes,omitempty"`
	AffectedCount int            `json:"affected_count,omitempty"`
	Origin        string         `json:"origin"`
	ClientInfo    string         `json:"client_info"`
	Note          string         `json:"note,omitempty"`
	RequestID     string         `json:"request_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Store persists entries append-only.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Recorder writes audit entries and mirrors them as structured log lines.
type Recorder struct {
	store Store
	now   func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record fills in defaults and appends the entry. The store write is
// best-effort: a failure is reported via the server log only, so it can
// never mask the outcome of the action it documents.
func (r *Recorder) Record(ctx context.Context, entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if strings.TrimSpace(entry.Origin) == "" {
		entry.Origin = "unknown"
	}
	if strings.TrimSpace(entry.ClientInfo) == "" {
		entry.ClientInfo = "unknown"
	}
	if entry.RequestID == "" {
		entry.RequestID = RequestIDFromContext(ctx)
	}
	if entry.ActorID == "" {
		if principal, ok := auth.PrincipalFromContext(ctx); ok {
			entry.ActorID = principal.ID
			entry.ActorName = principal.DisplayName
		}
	}

	if err := r.store.Append(ctx, &entry); err != nil {
		obs.LogRequest(map[string]any{
			"ts":    r.now().UTC().Format(time.RFC3339Nano),
			"level": "error",
			"msg":   "audit_append_failed",
			"error": err.Error(),
			"event": entry.Action,
		})
	}
	r.logLine(entry)
	return entry
}

// List returns recent entries, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return r.store.List(ctx, limit)
}

func (r *Recorder) logLine(entry Entry) {
	line := map[string]any{
		"ts":     entry.CreatedAt.Format(time.RFC3339Nano),
		"type":   "audit",
		"event":  entry.Action,
		"target": entry.TargetType + "/" + entry.TargetID,
		"origin": entry.Origin,
	}
	if entry.RequestID != "" {
		line["request_id"] = entry.RequestID
	}
	if entry.ActorID != "" {
		line["actor_id"] = entry.ActorID
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	obs.Logger().Println(string(data))
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from the context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
