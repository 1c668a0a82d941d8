package download

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Target is one unit of download work: a single remote file with its expected
// checksum and destination path.
type Target struct {
	// ID uniquely identifies the file across the whole job and is stable
	// across process restarts, so the ledger can recognise it in a later run.
	// By convention it is "<run accession>/<filename>".
	ID string

	// URL of the remote source file.
	URL string

	// LocalPath is the destination, optionally nested under a per-study
	// directory.
	LocalPath string

	// MD5 is the reference digest supplied by the metadata lookup.
	MD5 string

	// Size is an optional byte-length hint used for progress display only.
	Size int64

	Run   string
	Study string
}

// Status is the terminal outcome of a target within one job.
type Status string

const (
	StatusVerified Status = "verified"
	StatusFailed   Status = "failed"
	StatusSkipped  Status = "skipped"
)

// Outcome is the result of the retry sequence for one target.
type Outcome struct {
	Target   Target
	Status   Status
	Attempts int
	Bytes    int64
	Err      error
}

// Job is the full unit of orchestration handed to the scheduler.
type Job struct {
	Targets     []Target
	MaxParallel int
	Policy      RetryPolicy
}

// Report summarises a completed (or cancelled) job. Cancelled in-flight
// targets are not counted; only fully terminal outcomes appear here.
type Report struct {
	Verified  int
	Skipped   int
	Failed    int
	FailedIDs []string
	Bytes     int64
}

// HasFailures reports whether any target exhausted its retries.
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

func (r *Report) Summary() string {
	return fmt.Sprintf("%d verified, %d skipped, %d failed (%s downloaded)",
		r.Verified, r.Skipped, r.Failed, humanize.Bytes(uint64(r.Bytes)))
}
