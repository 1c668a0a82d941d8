package ena

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/enatools/enafetch/internal/logctx"
	"github.com/enatools/enafetch/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the public ENA Portal API.
const DefaultBaseURL = "https://www.ebi.ac.uk/ena/portal/api"

const resultReadRun = "read_run"

// Run is one row of read_run metadata keyed by portal column name.
type Run map[string]string

// Accession returns the run accession of the row.
func (r Run) Accession() string {
	return r["run_accession"]
}

// Result is a parsed portal search response. Columns preserves the portal's
// column order for the TSV export.
type Result struct {
	Columns []string
	Runs    []Run
}

// Client talks to the ENA Portal API. Requests are retried with jittered
// exponential backoff on network failures and server errors.
type Client struct {
	BaseURL string

	hc      *http.Client
	retries int
	backoff time.Duration
	tel     *telemetry.Telemetry
}

func NewClient(baseURL string, timeout time.Duration, retries int, tel *telemetry.Telemetry) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		hc: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   timeout,
		},
		retries: retries,
		backoff: time.Second,
		tel:     tel,
	}
}

// ReturnFields lists the metadata columns the portal can return for a result
// type. The full column set feeds the metadata TSV export.
func (c *Client) ReturnFields(ctx context.Context, result string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/returnFields?dataPortal=ena&format=json&result=%s", c.BaseURL, result)

	body, err := c.do(ctx, "return_fields", http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get return fields: %w", err)
	}
	defer body.Close()

	var entries []struct {
		ColumnID string `json:"columnId"`
	}

	if err := json.NewDecoder(body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode return fields: %w", err)
	}

	fields := make([]string, 0, len(entries))
	for _, e := range entries {
		fields = append(fields, e.ColumnID)
	}

	return fields, nil
}

// Search resolves accessions of the given type into read_run metadata rows.
// Every available column is requested so the rows can also feed the metadata
// exports; run_accession and sample_accession are always present.
func (c *Client) Search(ctx context.Context, accessions []string, typ AccessionType) (*Result, error) {
	if len(accessions) == 0 {
		return nil, fmt.Errorf("no accessions to search")
	}

	fields, err := c.ReturnFields(ctx, resultReadRun)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"result":               {resultReadRun},
		"fields":               {strings.Join(fields, ",")},
		"includeAccessionType": {string(typ)},
		"includeAccessions":    {strings.Join(accessions, ",")},
		"limit":                {"0"},
		"format":               {"tsv"},
	}

	body, err := c.do(ctx, "search", http.MethodPost, c.BaseURL+"/search", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to search portal: %w", err)
	}
	defer body.Close()

	return parseTSV(body)
}

// do issues one request, retrying transient failures up to c.retries times.
func (c *Client) do(ctx context.Context, operation, method, endpoint string, form io.Reader) (io.ReadCloser, error) {
	logger := logctx.LoggerFromContext(ctx)

	var payload []byte

	if form != nil {
		var err error
		if payload, err = io.ReadAll(form); err != nil {
			return nil, err
		}
	}

	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<uint(attempt-1))
			jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))

			logger.Warn("portal request failed, retrying", "attempt", attempt, "err", lastErr)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jittered):
			}
		}

		var reqBody io.Reader
		if payload != nil {
			reqBody = strings.NewReader(string(payload))
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		if method == http.MethodPost {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			c.tel.RecordPortalRequest(operation, "error")

			lastErr = err

			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			c.tel.RecordPortalRequest(operation, "error")

			lastErr = fmt.Errorf("portal server error: %s", resp.Status)

			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			c.tel.RecordPortalRequest(operation, "error")

			return nil, fmt.Errorf("portal request failed: %s", resp.Status)
		}

		c.tel.RecordPortalRequest(operation, "ok")

		return resp.Body, nil
	}

	return nil, fmt.Errorf("portal request failed after %d attempts: %w", c.retries+1, lastErr)
}

func parseTSV(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Result{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read metadata header: %w", err)
	}

	res := &Result{Columns: header}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("failed to parse metadata row: %w", err)
		}

		row := make(Run, len(header))

		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}

		res.Runs = append(res.Runs, row)
	}

	return res, nil
}
