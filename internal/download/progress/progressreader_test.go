package progress

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_CountsBytes(t *testing.T) {
	pr := NewReader(strings.NewReader("hello world"), 11, 4, nil)

	out, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
	assert.Equal(t, int64(11), pr.Count())
}

func TestReader_ReportsAtInterval(t *testing.T) {
	var reports [][2]int64

	pr := NewReader(strings.NewReader("hello world"), 11, 4, func(read, total int64) {
		reports = append(reports, [2]int64{read, total})
	})

	buf := make([]byte, 2)

	for {
		if _, err := pr.Read(buf); err == io.EOF {
			break
		} else {
			require.NoError(t, err)
		}
	}

	require.Len(t, reports, 2)
	assert.Equal(t, [2]int64{4, 11}, reports[0])
	assert.Equal(t, [2]int64{8, 11}, reports[1])
}

func TestReader_NoCallback(t *testing.T) {
	pr := NewReader(strings.NewReader("data"), 0, 1, nil)

	_, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, int64(4), pr.Count())
}
