// Package store provides thread binding persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/threadrelay/internal/domain"
	"github.com/containerd/errdefs"
)

// LookupState tags the result of a binding lookup.
type LookupState int

const (
	// LookupAbsent means no binding exists for the chat.
	LookupAbsent LookupState = iota
	// LookupFound means a thread is bound to the chat.
	LookupFound
	// LookupTransportError means the store could not be reached or answered
	// with something other than a value or a miss.
	LookupTransportError
)

func (s LookupState) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupAbsent:
		return "absent"
	default:
		return "transport_error"
	}
}

// ThreadLookup is the tagged result of BindingStore.Get.
type ThreadLookup struct {
	State    LookupState
	ThreadID string
	Err      error
}

// Found returns a lookup for an existing binding.
func Found(threadID string) ThreadLookup {
	return ThreadLookup{State: LookupFound, ThreadID: threadID}
}

// Absent returns a lookup for a missing binding.
func Absent() ThreadLookup {
	return ThreadLookup{State: LookupAbsent}
}

// TransportError returns a lookup for a store failure.
func TransportError(err error) ThreadLookup {
	return ThreadLookup{State: LookupTransportError, Err: err}
}

// BindingStore maps chat identities to remote thread identifiers.
type BindingStore interface {
	// Get looks up the thread bound to chatID.
	Get(ctx context.Context, chatID domain.ChatID) ThreadLookup

	// Put binds chatID to threadID, replacing any previous value.
	Put(ctx context.Context, chatID domain.ChatID, threadID string) error

	// Delete removes the binding for chatID. Deleting a missing binding is not an error.
	Delete(ctx context.Context, chatID domain.ChatID) error

	// Ping verifies the backing service is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// ErrBindingNotFound is returned by backends when a chat has no binding.
var ErrBindingNotFound = fmt.Errorf("thread binding: %w", errdefs.ErrNotFound)

// classify converts a backend Get result into a ThreadLookup.
func classify(threadID string, err error) ThreadLookup {
	switch {
	case err == nil && threadID != "":
		return Found(threadID)
	case err == nil, errdefs.IsNotFound(err):
		return Absent()
	default:
		return TransportError(err)
	}
}

// unavailable marks err as a transport failure.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errdefs.IsUnavailable(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, errors.Join(errdefs.ErrUnavailable, err))
}
