package ledger

import (
	"context"
	"errors"
	"strings"
)

// ErrCorrupt means the persisted progress state cannot be parsed. The engine
// must fail closed on it: unknown entries are never treated as verified.
var ErrCorrupt = errors.New("progress ledger is corrupt")

// Status of one file in the ledger.
type Status string

const (
	StatusVerified   Status = "verified"
	StatusIncomplete Status = "incomplete"
)

// Entry is the persisted record for one target file.
type Entry struct {
	ID        string
	Status    Status
	Checksum  string
	UpdatedAt string
}

// ChecksumMatches reports whether the recorded checksum still equals the
// currently expected one. This protects against metadata changing between
// runs: a verified entry whose checksum moved is re-downloaded.
func (e Entry) ChecksumMatches(expected string) bool {
	return strings.EqualFold(e.Checksum, expected)
}

// Ledger is the durable, cross-run record of which target files have been
// verified. It is the only state mutated by multiple workers; implementations
// serialize writes internally without blocking unrelated network I/O.
type Ledger interface {
	// Load returns all persisted entries keyed by target ID, or ErrCorrupt.
	Load(ctx context.Context) (map[string]Entry, error)

	// IsVerified reports whether id was verified with the given checksum.
	IsVerified(ctx context.Context, id, checksum string) (bool, error)

	// Record durably persists the entry before returning. A verified entry is
	// never downgraded.
	Record(ctx context.Context, id string, status Status, checksum string) error

	Close() error
}
