package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidSession = errors.New("session id is empty")
	ErrNilSession     = errors.New("session is nil")
)

// Global data keys. All pending-request fields live under one sub-map so
// unrelated steps cannot clobber each other's keys.
const (
	KeyPendingRequest = "pending_request"
	KeyLastRequestID  = "last_request_id"
)

// GlobalData is the per-session scratch space accumulated by tool results.
// Keys are only ever added or overwritten during a call, never removed.
type GlobalData map[string]any

// Session is the runtime position of one live call in the workflow plus its
// accumulated data. One per call; discarded when the call ends.
type Session struct {
	SessionID      string     `json:"session_id"`
	CurrentContext string     `json:"current_context"`
	CurrentStep    string     `json:"current_step"`
	GlobalData     GlobalData `json:"global_data,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func NewSession(sessionID, contextName, stepName string, now time.Time) *Session {
	return &Session{
		SessionID:      sessionID,
		CurrentContext: contextName,
		CurrentStep:    stepName,
		GlobalData:     make(GlobalData, 4),
		UpdatedAt:      now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// Merge applies a shallow key-overwrite: keys present in patch replace the
// prior value, keys absent stay untouched. Merging the same patch twice is a
// no-op the second time.
func (s *Session) Merge(patch map[string]any) {
	if len(patch) == 0 {
		return
	}
	if s.GlobalData == nil {
		s.GlobalData = make(GlobalData, len(patch))
	}
	for k, v := range patch {
		s.GlobalData[k] = v
	}
}

// Data returns a read-only snapshot of the global data for tool handlers.
// Top-level map values are copied so handlers cannot mutate session state.
func (s *Session) Data() GlobalData {
	out := make(GlobalData, len(s.GlobalData))
	for k, v := range s.GlobalData {
		if sub, ok := v.(map[string]any); ok {
			copied := make(map[string]any, len(sub))
			for sk, sv := range sub {
				copied[sk] = sv
			}
			out[k] = copied
			continue
		}
		out[k] = v
	}
	return out
}

// PendingRequest returns a copy of the pending-request sub-map, empty when the
// session has not started collecting one.
func (s *Session) PendingRequest() map[string]any {
	sub, ok := s.GlobalData[KeyPendingRequest].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(sub))
	for k, v := range sub {
		out[k] = v
	}
	return out
}

// PendingRequestFrom reads the pending-request sub-map out of a data snapshot.
func PendingRequestFrom(data GlobalData) map[string]any {
	sub, ok := data[KeyPendingRequest].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	out := make(map[string]any, len(sub))
	for k, v := range sub {
		out[k] = v
	}
	return out
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.GlobalData = s.Data()
	return &out
}

func (s *Session) Validate() error {
	if s == nil {
		return ErrNilSession
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.CurrentContext == "" || s.CurrentStep == "" {
		return fmt.Errorf("session %s has no workflow position", s.SessionID)
	}
	return nil
}
