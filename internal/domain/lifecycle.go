package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CaseStage 病例阶段（由三个正交标志推导）
type CaseStage string

const (
	StageCreated          CaseStage = "CREATED"
	StageNotesAdded       CaseStage = "NOTES_ADDED"
	StageSessionsLogged   CaseStage = "SESSIONS_LOGGED"
	StageNotesAndSessions CaseStage = "NOTES_AND_SESSIONS"
)

// LifecycleEvent is a state-changing write on a case. The values double as audit event types.
type LifecycleEvent string

const (
	EventCaseCreated          LifecycleEvent = "case.created"
	EventProviderNotesUpdated LifecycleEvent = "intake.provider_notes_updated"
	EventSessionLogged        LifecycleEvent = "session_log.created"
)

var ErrInvalidTransition = errors.New("invalid case lifecycle transition")

// Lifecycle intake is all-or-nothing; notes and sessions are independent of each other.
type Lifecycle struct {
	IntakeSubmitted bool
	NotesAdded      bool
	SessionCount    int
}

// LifecycleOf derives the lifecycle from what is populated on c.
// SessionLogs must be loaded for SessionCount to be meaningful.
func LifecycleOf(c *CaseHistory) Lifecycle {
	var l Lifecycle
	if c == nil {
		return l
	}
	if c.IntakeForm != nil {
		l.IntakeSubmitted = true
		l.NotesAdded = c.IntakeForm.ProviderNotes != nil && *c.IntakeForm.ProviderNotes != ""
	}
	l.SessionCount = len(c.SessionLogs)
	return l
}

// Stage 当前阶段；intake 未提交时返回空串
func (l Lifecycle) Stage() CaseStage {
	if !l.IntakeSubmitted {
		return ""
	}
	switch {
	case l.NotesAdded && l.SessionCount > 0:
		return StageNotesAndSessions
	case l.NotesAdded:
		return StageNotesAdded
	case l.SessionCount > 0:
		return StageSessionsLogged
	default:
		return StageCreated
	}
}

// Apply validates ev against the current state and returns the next state.
func (l Lifecycle) Apply(ev LifecycleEvent) (Lifecycle, error) {
	switch ev {
	case EventCaseCreated:
		if l.IntakeSubmitted {
			return l, fmt.Errorf("%w: intake already submitted", ErrInvalidTransition)
		}
		l.IntakeSubmitted = true
		return l, nil
	case EventProviderNotesUpdated:
		if !l.IntakeSubmitted {
			return l, fmt.Errorf("%w: provider notes before intake", ErrInvalidTransition)
		}
		l.NotesAdded = true
		return l, nil
	case EventSessionLogged:
		if !l.IntakeSubmitted {
			return l, fmt.Errorf("%w: session log before intake", ErrInvalidTransition)
		}
		l.SessionCount++
		return l, nil
	default:
		return l, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
}

func (l Lifecycle) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stage           CaseStage `json:"stage"`
		IntakeSubmitted bool      `json:"intakeSubmitted"`
		NotesAdded      bool      `json:"notesAdded"`
		SessionCount    int       `json:"sessionCount"`
	}{l.Stage(), l.IntakeSubmitted, l.NotesAdded, l.SessionCount})
}
