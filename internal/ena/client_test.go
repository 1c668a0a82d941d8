package ena

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const portalTSV = "run_accession\tsample_accession\tfastq_ftp\tfastq_md5\n" +
	"ERR000001\tERS000001\tftp.sra.ebi.ac.uk/vol1/ERR000001_1.fastq.gz;ftp.sra.ebi.ac.uk/vol1/ERR000001_2.fastq.gz\tabc;def\n" +
	"ERR000002\tERS000002\tftp.sra.ebi.ac.uk/vol1/ERR000002.fastq.gz\tghi\n"

// portalServer fakes the two portal endpoints the client uses.
func portalServer(t *testing.T, searchFailures int) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var searchHits atomic.Int32

	mux := http.NewServeMux()

	mux.HandleFunc("/returnFields", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "read_run", r.URL.Query().Get("result"))
		fmt.Fprint(w, `[{"columnId":"run_accession"},{"columnId":"sample_accession"},{"columnId":"fastq_ftp"},{"columnId":"fastq_md5"}]`)
	})

	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if int(searchHits.Add(1)) <= searchFailures {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "read_run", r.FormValue("result"))
		assert.Equal(t, "run", r.FormValue("includeAccessionType"))
		assert.Equal(t, "ERR000001,ERR000002", r.FormValue("includeAccessions"))
		assert.Equal(t, "0", r.FormValue("limit"))
		assert.Equal(t, "tsv", r.FormValue("format"))
		assert.Contains(t, r.FormValue("fields"), "fastq_md5")

		fmt.Fprint(w, portalTSV)
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	return ts, &searchHits
}

func newTestClient(baseURL string, retries int) *Client {
	c := NewClient(baseURL, 5*time.Second, retries, nil)
	c.backoff = time.Millisecond

	return c
}

func TestClient_Search(t *testing.T) {
	ts, _ := portalServer(t, 0)

	res, err := newTestClient(ts.URL, 0).Search(context.Background(), []string{"ERR000001", "ERR000002"}, TypeRun)
	require.NoError(t, err)

	assert.Equal(t, []string{"run_accession", "sample_accession", "fastq_ftp", "fastq_md5"}, res.Columns)
	require.Len(t, res.Runs, 2)
	assert.Equal(t, "ERR000001", res.Runs[0].Accession())
	assert.Equal(t, "ghi", res.Runs[1]["fastq_md5"])
}

func TestClient_SearchRetriesServerErrors(t *testing.T) {
	ts, searchHits := portalServer(t, 2)

	res, err := newTestClient(ts.URL, 2).Search(context.Background(), []string{"ERR000001", "ERR000002"}, TypeRun)
	require.NoError(t, err)
	assert.Len(t, res.Runs, 2)
	assert.Equal(t, int32(3), searchHits.Load())
}

func TestClient_SearchExhaustsRetries(t *testing.T) {
	ts, searchHits := portalServer(t, 100)

	_, err := newTestClient(ts.URL, 1).Search(context.Background(), []string{"ERR000001", "ERR000002"}, TypeRun)
	require.Error(t, err)
	assert.Equal(t, int32(2), searchHits.Load())
}

// Client errors such as a rejected query are not retried.
func TestClient_BadRequestIsFatal(t *testing.T) {
	var hits atomic.Int32

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	_, err := newTestClient(ts.URL, 3).ReturnFields(context.Background(), "read_run")
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_SearchNoAccessions(t *testing.T) {
	_, err := newTestClient("http://portal.invalid", 0).Search(context.Background(), nil, TypeRun)
	assert.Error(t, err)
}

func TestParseTSV_Empty(t *testing.T) {
	res, err := parseTSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, res.Columns)
	assert.Empty(t, res.Runs)
}

func TestParseTSV_ShortRow(t *testing.T) {
	res, err := parseTSV(strings.NewReader("a\tb\tc\n1\t2\n"))
	require.NoError(t, err)
	require.Len(t, res.Runs, 1)
	assert.Equal(t, "2", res.Runs[0]["b"])

	_, ok := res.Runs[0]["c"]
	assert.False(t, ok)
}
