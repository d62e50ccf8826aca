package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy shared by every component. Callers branch with errors.Is.
var (
	// ErrInvalidArgument marks malformed or missing identifiers and
	// malformed resolution payloads. Rejected synchronously, never retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound marks an absent target on delete/mark-read. Benign by
	// convention: operations are idempotent toward absence.
	ErrNotFound = errors.New("not found")

	// ErrGapped marks a subscriber that fell behind the channel's retained
	// buffer and must resynchronize via a fresh snapshot.
	ErrGapped = errors.New("stream gapped")

	// ErrTransient marks a temporarily unavailable store. Retried with
	// backoff up to a budget.
	ErrTransient = errors.New("transient store error")
)

const maxIDLen = 128

// CheckID validates an entity identifier. Ids end up in log lines and on-disk
// filenames, so path characters are rejected along with empty and oversized
// values; everything else is opaque.
func CheckID(field, id string) error {
	if id == "" {
		return fmt.Errorf("%s is empty: %w", field, ErrInvalidArgument)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds %d bytes: %w", field, maxIDLen, ErrInvalidArgument)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%s contains path characters: %w", field, ErrInvalidArgument)
	}
	return nil
}
