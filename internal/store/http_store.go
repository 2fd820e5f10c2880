package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/username/school-status/internal/calendar"
	"go.uber.org/zap"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	// maxDocumentSize bounds a single downloaded document
	maxDocumentSize = 4 << 20
)

// HTTPStore reads documents published under a base URL with the same layout
// as a FileStore. Years are listed by <base>/<calendarType>/years.json, a JSON
// array of numbers, since static hosts do not list directories.
type HTTPStore struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPStore creates a new HTTPStore. A zero timeout uses the default.
func NewHTTPStore(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPStore {
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Path returns the URL of key
func (hs *HTTPStore) Path(key Key) string {
	return hs.baseURL + "/" + key.String()
}

// Read downloads the document for key. A 404 wraps os.ErrNotExist.
func (hs *HTTPStore) Read(ctx context.Context, key Key) ([]byte, error) {
	return hs.get(ctx, hs.Path(key))
}

// ListYears downloads the years index of the calendar type
func (hs *HTTPStore) ListYears(ctx context.Context, calendarType calendar.CalendarType) ([]int, error) {
	url := hs.baseURL + "/" + string(calendarType) + "/years.json"

	body, err := hs.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var years []int
	if err := json.Unmarshal(body, &years); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", url, err)
	}

	sort.Ints(years)
	return years, nil
}

func (hs *HTTPStore) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	hs.logger.Debug("Fetching document", zap.String("url", url))

	resp, err := hs.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("failed to fetch %s: %w", url, os.ErrNotExist)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch %s: server returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > maxDocumentSize {
		return nil, fmt.Errorf("document %s exceeds %d bytes", url, maxDocumentSize)
	}

	return body, nil
}
