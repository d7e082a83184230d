/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package actorstate keeps lightweight per-actor session state: a role, one
// named selection, short-lived scratch values and untimed flags. State lives
// in a bounded in-memory map, the least recently used actors are evicted when
// the cap is reached.
package actorstate

import (
	"errors"
	"fmt"
	"time"
)

// Role defines what an actor is allowed to do.
type Role string

// Known roles. RoleManager is the default for actors that never had a role set.
const (
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
	RoleDispatch Role = "dispatch"
)

// ErrUnknownRole is returned for roles outside the known set.
var ErrUnknownRole = errors.New("unknown role")

// ParseRole converts a string into a known Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleManager, RoleAdmin, RoleDispatch:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownRole, s)
}

// Selection is the actor's current working choice, e.g. the object an admin
// operates on. An actor has at most one.
type Selection struct {
	Name     string    `json:"name"`
	Code     string    `json:"code"`
	ChosenAt time.Time `json:"chosen_at"`
}
