package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/enatools/enafetch/internal/ena"
	"github.com/enatools/enafetch/internal/logctx"
)

// WriteTSV writes the full metadata table as metadata.tsv inside dir, columns
// in the portal's order.
func WriteTSV(ctx context.Context, dir string, res *ena.Result) error {
	logger := logctx.LoggerFromContext(ctx)

	outFile := filepath.Join(dir, "metadata.tsv")

	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create metadata file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = '\t'

	if err := w.Write(res.Columns); err != nil {
		return fmt.Errorf("failed to write metadata header: %w", err)
	}

	record := make([]string, len(res.Columns))

	for _, run := range res.Runs {
		for i, col := range res.Columns {
			record[i] = run[col]
		}

		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write metadata row: %w", err)
		}
	}

	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush metadata file: %w", err)
	}

	logger.Info("wrote metadata", "file", filepath.Base(outFile), "runs", len(res.Runs))

	return nil
}
