// Package history provides bounded undo/redo stacks over deep-copied
// snapshots. Each editing domain (scene edits, graph edits) gets its own
// stack with its own depth cap; pushing past the cap evicts the oldest
// snapshot, and pushing after an undo discards the redo tail.
package history

import (
	"errors"

	"github.com/jinzhu/copier"
)

// ErrEmpty is returned when there is nothing to undo or redo.
var ErrEmpty = errors.New("history: empty")

// Stack is a bounded undo/redo stack of snapshots of T. The zero value is
// unusable; use New.
type Stack[T any] struct {
	cap  int
	undo []T
	redo []T
	snap func(T) (T, error)
}

// New returns a stack holding at most cap snapshots, deep-copied
// reflectively. A cap below 1 is treated as 1. Types with unexported
// fields that matter need NewFunc with an explicit cloner.
func New[T any](cap int) *Stack[T] {
	return NewFunc(cap, deepCopy[T])
}

// NewFunc returns a stack using snap to clone states into and out of
// storage.
func NewFunc[T any](cap int, snap func(T) (T, error)) *Stack[T] {
	if cap < 1 {
		cap = 1
	}
	return &Stack[T]{cap: cap, snap: snap}
}

// deepCopy clones a snapshot so later mutation of the live state cannot
// reach into stored history.
func deepCopy[T any](v T) (T, error) {
	var out T
	err := copier.CopyWithOption(&out, &v, copier.Option{DeepCopy: true})
	return out, err
}

// Push records the current state as an undo point and clears the redo
// tail. The oldest snapshot is evicted once the cap is reached.
func (s *Stack[T]) Push(state T) error {
	snap, err := s.snap(state)
	if err != nil {
		return err
	}
	s.undo = append(s.undo, snap)
	if len(s.undo) > s.cap {
		copy(s.undo, s.undo[1:])
		s.undo = s.undo[:s.cap]
	}
	s.redo = s.redo[:0]
	return nil
}

// Undo stores current as a redo point and returns the most recent undo
// snapshot.
func (s *Stack[T]) Undo(current T) (T, error) {
	var zero T
	if len(s.undo) == 0 {
		return zero, ErrEmpty
	}
	snap, err := s.snap(current)
	if err != nil {
		return zero, err
	}
	s.redo = append(s.redo, snap)

	top := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	return top, nil
}

// Redo stores current as an undo point and returns the most recent redo
// snapshot.
func (s *Stack[T]) Redo(current T) (T, error) {
	var zero T
	if len(s.redo) == 0 {
		return zero, ErrEmpty
	}
	snap, err := s.snap(current)
	if err != nil {
		return zero, err
	}
	s.undo = append(s.undo, snap)

	top := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	return top, nil
}

// CanUndo reports whether an undo snapshot is available.
func (s *Stack[T]) CanUndo() bool { return len(s.undo) > 0 }

// CanRedo reports whether a redo snapshot is available.
func (s *Stack[T]) CanRedo() bool { return len(s.redo) > 0 }

// Depth returns the number of stored undo snapshots.
func (s *Stack[T]) Depth() int { return len(s.undo) }

// Clear drops all snapshots.
func (s *Stack[T]) Clear() {
	s.undo = s.undo[:0]
	s.redo = s.redo[:0]
}
