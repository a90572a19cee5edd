// Package association implements membership toggles for (user, target) rows
// such as likes, saves and event joins.
package association

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("association: actor is not authenticated")
	ErrUnknownKind     = errors.New("association: unknown kind")
	ErrInvalidTarget   = errors.New("association: invalid target id")
	ErrTargetNotFound  = errors.New("association: target not found")
)

type Kind string

const (
	EventLike    Kind = "event-like"
	EventJoin    Kind = "event-join"
	QuestionLike Kind = "question-like"
	QuestionSave Kind = "question-save"
	QuoteLike    Kind = "quote-like"
)

type kindInfo struct {
	table       string
	column      string
	targetTable string
}

var kinds = map[Kind]kindInfo{
	EventLike:    {table: "event_like", column: "event_id", targetTable: "events"},
	EventJoin:    {table: "event_join", column: "event_id", targetTable: "events"},
	QuestionLike: {table: "question_like", column: "question_id", targetTable: "questions"},
	QuestionSave: {table: "question_save", column: "question_id", targetTable: "questions"},
	QuoteLike:    {table: "quote_like", column: "quote_id", targetTable: "quotes"},
}

// Kinds returns every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{EventLike, EventJoin, QuestionLike, QuestionSave, QuoteLike}
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// KindForTable maps an association table name back to its kind.
func KindForTable(table string) (Kind, bool) {
	for k, info := range kinds {
		if info.table == table {
			return k, true
		}
	}
	return "", false
}

func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Table is the association table holding rows of this kind.
func (k Kind) Table() string { return kinds[k].table }

// Column is the target id column of the association table.
func (k Kind) Column() string { return kinds[k].column }

// TargetTable is the table the target id refers to.
func (k Kind) TargetTable() string { return kinds[k].targetTable }

func (k Kind) String() string { return string(k) }

type Key struct {
	ActorId  string `json:"actor_id"`
	TargetId int64  `json:"target_id"`
	Kind     Kind   `json:"kind"`
}

func (k Key) Validate() error {
	if strings.TrimSpace(k.ActorId) == "" {
		return ErrUnauthenticated
	}
	if !k.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, k.Kind)
	}
	if k.TargetId <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTarget, k.TargetId)
	}
	return nil
}

type State string

const (
	Absent  State = "absent"
	Present State = "present"
)

func ParseState(s string) (State, error) {
	switch State(s) {
	case Absent, Present:
		return State(s), nil
	}
	return "", fmt.Errorf("association: invalid state %q", s)
}

func StateOf(present bool) State {
	if present {
		return Present
	}
	return Absent
}

func (s State) Flip() State {
	if s == Present {
		return Absent
	}
	return Present
}

// Result is the membership state after an operation. Changed is false when
// the store already was in the requested state, which is how a lost race
// shows up.
type Result struct {
	Key     Key   `json:"key"`
	State   State `json:"state"`
	Changed bool  `json:"changed"`
}
