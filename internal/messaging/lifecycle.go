package messaging

import (
	"errors"
	"fmt"
	"slices"
)

// State is where a conversation stands, either as one participant sees it
// (StateFor) or overall (State).
type State string

const (
	StateActive             State = "active"
	StateSoftDeleted        State = "soft_deleted"
	StatePermanentlyDeleted State = "permanently_deleted"
	StatePurged             State = "purged"
)

type Action string

const (
	ActionUserDelete  Action = "user_delete"
	ActionUserRestore Action = "user_restore"
	ActionNewMessage  Action = "new_message"
	ActionAdminDelete Action = "admin_delete"
	ActionPurge       Action = "purge"
)

var ErrInvalidTransition = errors.New("invalid conversation transition")

var transitions = map[State]map[Action]State{
	StateActive: {
		ActionUserDelete:  StateSoftDeleted,
		ActionUserRestore: StateActive,
		ActionNewMessage:  StateActive,
		ActionAdminDelete: StatePermanentlyDeleted,
	},
	StateSoftDeleted: {
		ActionUserDelete:  StateSoftDeleted,
		ActionUserRestore: StateActive,
		ActionNewMessage:  StateActive,
		ActionAdminDelete: StatePermanentlyDeleted,
	},
	StatePermanentlyDeleted: {
		ActionPurge: StatePurged,
	},
}

// Transition reports the state a conversation moves to when action is
// applied in state from. Permanently deleted conversations only accept the
// purge, and purged ones accept nothing.
func Transition(from State, action Action) (State, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, action, from)
}

// State is the overall state: soft deleted as soon as any participant hid it.
func (c *Conversation) State() State {
	switch {
	case c.PermanentlyDeleted:
		return StatePermanentlyDeleted
	case len(c.DeletedBy) > 0:
		return StateSoftDeleted
	default:
		return StateActive
	}
}

// StateFor is the state as seen by one participant.
func (c *Conversation) StateFor(userID string) State {
	switch {
	case c.PermanentlyDeleted:
		return StatePermanentlyDeleted
	case slices.Contains(c.DeletedBy, userID):
		return StateSoftDeleted
	default:
		return StateActive
	}
}

// VisibleTo reports whether the conversation shows up in userID's list.
func (c *Conversation) VisibleTo(userID string) bool {
	return c.HasParticipant(userID) && c.StateFor(userID) == StateActive
}

func ParseState(s string) (State, bool) {
	switch st := State(s); st {
	case StateActive, StateSoftDeleted, StatePermanentlyDeleted:
		return st, true
	}
	return "", false
}
