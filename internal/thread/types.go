// Package thread provides persistence for mentor conversation threads and
// their typed messages.
//
// A thread holds exactly one non-archived SYSTEM message and at most one
// non-archived SUMMARY message at any time; both are maintained through
// upsert-on-role semantics rather than database constraints. USER and MENTOR
// messages accumulate and are flipped to archived when folded into a summary,
// never deleted.
package thread

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies how a message participates in the conversation.
type Role string

const (
	RoleSystem  Role = "SYSTEM"
	RoleSummary Role = "SUMMARY"
	RoleUser    Role = "USER"
	RoleMentor  Role = "MENTOR"
)

// Valid reports whether r is one of the storage roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleSummary, RoleUser, RoleMentor:
		return true
	}
	return false
}

// PresentationRole maps the storage role to the role presented to the
// completion backend: SUMMARY is rendered as SYSTEM, all other roles pass
// through. The persisted role is never affected.
func (r Role) PresentationRole() Role {
	if r == RoleSummary {
		return RoleSystem
	}
	return r
}

// Status values for a thread lifecycle. A thread leaves ACTIVE only through
// the judge or an explicit completion action, and never returns.
const (
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
)

// Thread is one mentor conversation, scoped to a lesson and a student.
type Thread struct {
	ID           uuid.UUID
	LessonID     uuid.UUID
	UserID       uuid.UUID
	UserLanguage string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the thread still accepts chat turns.
func (t *Thread) Active() bool {
	return t.Status == StatusActive
}

// LanguageName expands common language codes so model prompts read
// naturally. Unknown codes pass through verbatim.
func LanguageName(code string) string {
	switch strings.ToLower(code) {
	case "en", "":
		return "English"
	case "pl":
		return "Polish"
	case "de":
		return "German"
	case "es":
		return "Spanish"
	case "fr":
		return "French"
	case "uk":
		return "Ukrainian"
	default:
		return code
	}
}

// Message is a single persisted conversation entry. TokenCount is computed
// once at write time with the model in effect for that turn and never
// recomputed retroactively.
type Message struct {
	ID         uuid.UUID
	ThreadID   uuid.UUID
	Role       Role
	Content    string
	TokenCount int
	Archived   bool
	CreatedAt  time.Time
}
