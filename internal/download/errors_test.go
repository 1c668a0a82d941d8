package download

import (
	"errors"
	"fmt"
	"testing"
)

// TestNetworkError_Error verifies error message formatting
func TestNetworkError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *NetworkError
		want string
	}{
		{
			name: "with HTTP status code",
			err:  &NetworkError{URL: "https://ftp.example.org/a.fastq.gz", StatusCode: 503},
			want: "network error fetching https://ftp.example.org/a.fastq.gz (HTTP 503)",
		},
		{
			name: "without HTTP status code",
			err:  &NetworkError{URL: "https://ftp.example.org/a.fastq.gz", Err: errors.New("connection reset")},
			want: "network error fetching https://ftp.example.org/a.fastq.gz: connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := &NetworkError{URL: "https://example.org", Err: cause}

	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause to be reachable via errors.Is")
	}
}

func TestChecksumError_Error(t *testing.T) {
	err := &ChecksumError{Path: "/out/a.fastq.gz", Want: "aaa", Got: "bbb"}

	want := "checksum mismatch for /out/a.fastq.gz: want aaa, got bbb"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

// TestIsPermanent verifies the transient/permanent classification.
func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"not found", &NotFoundError{URL: "u"}, true},
		{"permission denied", &PermissionError{URL: "u", StatusCode: 403}, true},
		{"wrapped not found", fmt.Errorf("attempt failed: %w", &NotFoundError{URL: "u"}), true},
		{"network error", &NetworkError{URL: "u", StatusCode: 500}, false},
		{"checksum error", &ChecksumError{Path: "p"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent() = %v, want %v", got, tt.want)
			}
		})
	}
}
