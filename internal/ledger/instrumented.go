package ledger

import (
	"context"

	"github.com/enatools/enafetch/internal/telemetry"
)

// Instrumented wraps a Ledger and counts its operations.
type Instrumented struct {
	inner Ledger
	tel   *telemetry.Telemetry
}

func NewInstrumented(inner Ledger, tel *telemetry.Telemetry) *Instrumented {
	return &Instrumented{inner: inner, tel: tel}
}

func (l *Instrumented) Load(ctx context.Context) (map[string]Entry, error) {
	entries, err := l.inner.Load(ctx)
	l.tel.RecordLedgerOp("load", opStatus(err))

	return entries, err
}

func (l *Instrumented) IsVerified(ctx context.Context, id, checksum string) (bool, error) {
	verified, err := l.inner.IsVerified(ctx, id, checksum)
	l.tel.RecordLedgerOp("is_verified", opStatus(err))

	return verified, err
}

func (l *Instrumented) Record(ctx context.Context, id string, status Status, checksum string) error {
	err := l.inner.Record(ctx, id, status, checksum)
	l.tel.RecordLedgerOp("record", opStatus(err))

	return err
}

func (l *Instrumented) Close() error {
	return l.inner.Close()
}

func opStatus(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}
