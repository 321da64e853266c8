package models

import "strings"

// Role of a participant.
type Role string

const (
	RolePresenter Role = "presenter"
	RoleViewer    Role = "viewer"
)

// Normalize maps legacy role names onto the canonical ones.
func (r Role) Normalize() Role {
	switch strings.ToLower(string(r)) {
	case "presenter", "teacher":
		return RolePresenter
	case "viewer", "student":
		return RoleViewer
	}
	return r
}

// Valid reports whether r is one of the two participant roles.
func (r Role) Valid() bool {
	return r == RolePresenter || r == RoleViewer
}

// RosterEntry is one row of an attendants-list.
type RosterEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SessionSummary is the public view of the current session.
type SessionSummary struct {
	Presenter bool `json:"presenter"`
	Viewers   int  `json:"viewers"`
}
