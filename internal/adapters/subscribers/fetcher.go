// Package subscribers reads the supporter list from a published
// spreadsheet CSV. The first column of each row is a DID.
package subscribers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrStatus is returned for a non-200 response.
var ErrStatus = errors.New("subscribers: unexpected status")

// Fetcher downloads the subscriber CSV.
type Fetcher struct {
	url        string
	httpClient *http.Client
}

// NewFetcher returns a Fetcher for url. httpClient may be nil.
func NewFetcher(url string, httpClient *http.Client) *Fetcher {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fetcher{url: url, httpClient: httpClient}
}

// Enabled reports whether a URL is configured.
func (f *Fetcher) Enabled() bool { return f.url != "" }

// Fetch returns the set of subscriber DIDs. Rows whose first cell is not a
// DID (headers, blanks) are skipped.
func (f *Fetcher) Fetch(ctx context.Context) (map[string]struct{}, error) {
	if !f.Enabled() {
		return map[string]struct{}{}, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch subscribers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return parse(resp.Body)
}

func parse(r io.Reader) (map[string]struct{}, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	out := make(map[string]struct{})
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse subscribers csv: %w", err)
		}
		if len(row) == 0 {
			continue
		}
		did := strings.TrimSpace(row[0])
		if strings.HasPrefix(did, "did:") {
			out[did] = struct{}{}
		}
	}
}
