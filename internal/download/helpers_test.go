package download

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/enatools/enafetch/internal/ledger"
)

// memLedger is an in-memory ledger for engine tests.
type memLedger struct {
	mu      sync.Mutex
	entries map[string]ledger.Entry
	loadErr error
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]ledger.Entry)}
}

func (m *memLedger) Load(_ context.Context) (map[string]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, m.loadErr
	}

	entries := make(map[string]ledger.Entry, len(m.entries))
	for id, e := range m.entries {
		entries[id] = e
	}

	return entries, nil
}

func (m *memLedger) IsVerified(_ context.Context, id, checksum string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]

	return ok && e.Status == ledger.StatusVerified && e.ChecksumMatches(checksum), nil
}

func (m *memLedger) Record(_ context.Context, id string, status ledger.Status, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.entries[id]; ok && prev.Status == ledger.StatusVerified && status != ledger.StatusVerified {
		return nil
	}

	m.entries[id] = ledger.Entry{ID: id, Status: status, Checksum: checksum}

	return nil
}

func (m *memLedger) Close() error { return nil }

func (m *memLedger) entry(id string) (ledger.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]

	return e, ok
}

// scriptedFetcher runs a fixed list of attempt outcomes for every target.
type scriptedFetcher struct {
	mu       sync.Mutex
	attempts map[string]int
	script   func(t Target, attempt int) ([]byte, error)
}

func newScriptedFetcher(script func(t Target, attempt int) ([]byte, error)) *scriptedFetcher {
	return &scriptedFetcher{
		attempts: make(map[string]int),
		script:   script,
	}
}

func (f *scriptedFetcher) FetchOnce(_ context.Context, t Target) (int64, error) {
	f.mu.Lock()
	f.attempts[t.ID]++
	attempt := f.attempts[t.ID]
	f.mu.Unlock()

	content, err := f.script(t, attempt)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(t.LocalPath), 0755); err != nil {
		return 0, err
	}

	if err := os.WriteFile(t.LocalPath+PartSuffix, content, 0644); err != nil {
		return 0, err
	}

	return int64(len(content)), nil
}

func (f *scriptedFetcher) count(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.attempts[id]
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Backoff:    time.Millisecond,
		MaxBackoff: 2 * time.Millisecond,
	}
}

func testTarget(t *testing.T, md5sum string) Target {
	t.Helper()

	dir := t.TempDir()

	return Target{
		ID:        "ERR000001/ERR000001_1.fastq.gz",
		URL:       "https://ftp.example.org/ERR000001_1.fastq.gz",
		LocalPath: filepath.Join(dir, "ERR000001_1.fastq.gz"),
		MD5:       md5sum,
		Run:       "ERR000001",
	}
}
