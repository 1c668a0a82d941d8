package download

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// MD5Sum streams the file at path through an MD5 hasher and returns the hex
// digest. Files may be multi-gigabyte, so the content is never held in memory.
func MD5Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read file for checksum: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyMD5 compares the digest of the file at path against expected.
// The comparison is case-insensitive on the hex encoding.
func VerifyMD5(path, expected string) (bool, error) {
	got, err := MD5Sum(path)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(got, expected), nil
}
