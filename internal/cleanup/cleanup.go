package cleanup

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/enatools/enafetch/internal/logctx"
)

const partSuffix = ".part"

// RemovePartials deletes temporary ".part" files left under dir by a killed
// prior invocation. Partial content is never trusted; interrupted files are
// re-downloaded from scratch. Returns the number of files removed.
func RemovePartials(ctx context.Context, dir string) (int, error) {
	logger := logctx.LoggerFromContext(ctx)

	removed := 0

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), partSuffix) {
			return nil
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Error("failed to remove stale partial file", "file", path, "err", err)

			return err
		}

		logger.Info("removed stale partial file", "file", path)
		removed++

		return nil
	})
	if err != nil {
		return removed, err
	}

	return removed, nil
}
