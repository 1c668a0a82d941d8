package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/enatools/enafetch/internal/download/progress"
	"github.com/enatools/enafetch/internal/logctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	dirPerm = 0755

	// PartSuffix marks an in-flight download. A file at LocalPath without the
	// suffix is always complete and verified.
	PartSuffix = ".part"

	progressInterval = int64(100 * 1024 * 1024) // 100MB
)

// Fetcher performs one transfer attempt for a target.
type Fetcher interface {
	// FetchOnce streams the remote file to LocalPath+PartSuffix and returns
	// the bytes written. On any error the temporary file is discarded; on
	// success it is left in place for the caller to verify and promote.
	FetchOnce(ctx context.Context, t Target) (int64, error)
}

// HTTPFetcher fetches targets over plain HTTP(S) GET requests.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher tuned for long-lived large transfers.
// headerTimeout bounds the wait for response headers only; the body stream
// itself may legitimately take hours and is bounded by the request context.
func NewHTTPFetcher(headerTimeout time.Duration) *HTTPFetcher {
	transport := &http.Transport{
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		DisableCompression:    true,
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: otelhttp.NewTransport(transport),
		},
	}
}

func (f *HTTPFetcher) FetchOnce(ctx context.Context, t Target) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	partPath := t.LocalPath + PartSuffix

	if err := os.MkdirAll(filepath.Dir(t.LocalPath), dirPerm); err != nil {
		return 0, fmt.Errorf("failed to create target directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &NetworkError{URL: t.URL, Err: err}
	}
	defer resp.Body.Close()

	if err := classifyStatus(t.URL, resp.StatusCode); err != nil {
		return 0, err
	}

	out, err := os.Create(partPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = t.Size
	}

	logger.Info("downloading file", "file", filepath.Base(t.LocalPath), "file_size", humanize.Bytes(uint64(max(total, 0))))

	pr := progress.NewReader(resp.Body, total, progressInterval, func(read, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"file", filepath.Base(t.LocalPath),
				"downloaded", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(read)*100/float64(total), 2))
		} else {
			logger.Debug("download progress", "file", filepath.Base(t.LocalPath), "downloaded", humanize.Bytes(uint64(read)))
		}
	})

	written, copyErr := io.Copy(out, pr)

	if closeErr := out.Close(); copyErr == nil {
		copyErr = closeErr
	}

	if copyErr != nil {
		if rmErr := os.Remove(partPath); rmErr != nil {
			logger.Warn("failed to discard temporary file", "path", partPath, "err", rmErr)
		}

		return written, &NetworkError{URL: t.URL, Err: copyErr}
	}

	return written, nil
}

func classifyStatus(url string, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return &NotFoundError{URL: url}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &PermissionError{URL: url, StatusCode: code}
	default:
		return &NetworkError{URL: url, StatusCode: code}
	}
}
