package progress

import "io"

// Reader wraps an io.Reader and invokes a callback as bytes flow through it,
// at most once per reportInterval bytes. Used to surface transfer progress for
// large files without logging on every read.
type Reader struct {
	reader         io.Reader
	total          int64
	onProgress     func(read, total int64)
	read           int64
	sinceReport    int64
	reportInterval int64
}

// NewReader builds a Reader over r. total may be 0 when the remote size is
// unknown; interval is the number of bytes between callbacks.
func NewReader(r io.Reader, total, interval int64, cb func(read, total int64)) *Reader {
	return &Reader{
		reader:         r,
		total:          total,
		onProgress:     cb,
		reportInterval: interval,
	}
}

// Count returns the cumulative number of bytes read so far.
func (pr *Reader) Count() int64 {
	return pr.read
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.read += int64(n)
		pr.sinceReport += int64(n)

		if pr.onProgress != nil && pr.sinceReport >= pr.reportInterval {
			pr.onProgress(pr.read, pr.total)
			pr.sinceReport = 0
		}
	}

	return n, err
}
