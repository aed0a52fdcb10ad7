// Copyright (c) 2026 The ember developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// Unwrap returns the underlying cause, e.g. a remote fetch failure.
func (e *Error) Unwrap() error {
	return e.cause
}

var (
	// ErrCodeNotFound is returned when no account's code matches the requested hash.
	ErrCodeNotFound = errors.New("no code for given hash")

	// ErrNoCheckpoint is returned when reverting with no checkpoint outstanding.
	ErrNoCheckpoint = errors.New("no checkpoint to revert")

	// ErrInvalidCheckpoint is returned when the given checkpoint is not among
	// the currently held ones, e.g. already reverted past or dropped by commit.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)
