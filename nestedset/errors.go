package nestedset

import (
	"errors"
	"fmt"

	"github.com/bluesky-social/nestedset/check"
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/store"
)

var (
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("node not found")
	// ErrLogic matches every *LogicError.
	ErrLogic = errors.New("invalid tree operation")
)

// NotFoundError is returned when an identifier does not resolve inside the
// tree's scope.
type NotFoundError struct {
	ID models.NodeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound || target == store.ErrNotFound
}

// LogicError is a rejected structural change. Nothing was written when it
// is returned.
type LogicError struct {
	Op     string
	Reason string
	Err    error
}

func (e *LogicError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *LogicError) Is(target error) bool {
	return target == ErrLogic
}

func (e *LogicError) Unwrap() error {
	return e.Err
}

// ConsistencyError is informational: a broken tree is reported by
// CountErrors, never returned from a mutation.
type ConsistencyError = check.ConsistencyError

func logicErr(op, reason string) error {
	return &LogicError{Op: op, Reason: reason}
}

// notFound maps a store miss for id onto the taxonomy.
func notFound(id models.NodeID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &NotFoundError{ID: id}
	}
	return err
}
