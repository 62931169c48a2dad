package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrNoEndpoint means no association resource could be located; the
// reconciler then falls back to the article's embedded genre list.
var ErrNoEndpoint = errors.New("no association endpoint found")

// Locator finds the association resource endpoint.
type Locator interface {
	Locate(ctx context.Context, articleID int64) (string, error)
}

// StaticLocator returns a configured endpoint without any network traffic.
type StaticLocator struct {
	Endpoint string
}

func (l StaticLocator) Locate(ctx context.Context, articleID int64) (string, error) {
	if strings.TrimSpace(l.Endpoint) == "" {
		return "", ErrNoEndpoint
	}
	return endpointPath(l.Endpoint), nil
}

// ProbingLocator tries candidate spellings in order and remembers the first
// one that answers with a 2xx JSON body for the rest of its lifetime.
// Failures are not remembered, so a later call probes again.
type ProbingLocator struct {
	client     Transport
	candidates []string
	pageSize   int
	logger     *zap.Logger

	mu       sync.Mutex
	resolved string
}

func NewProbingLocator(client Transport, candidates []string, pageSize int, logger *zap.Logger) *ProbingLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &ProbingLocator{
		client:     client,
		candidates: append([]string(nil), candidates...),
		pageSize:   pageSize,
		logger:     logger,
	}
}

func (l *ProbingLocator) Locate(ctx context.Context, articleID int64) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resolved != "" {
		return l.resolved, nil
	}

	for _, candidate := range l.candidates {
		endpoint := endpointPath(candidate)
		body, err := l.client.Get(ctx, endpoint, associationQuery(articleID, 0, l.pageSize))
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			l.logger.Debug("association probe failed", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		if !json.Valid(body) {
			l.logger.Debug("association probe returned non-JSON body", zap.String("endpoint", endpoint))
			continue
		}

		l.resolved = endpoint
		l.logger.Info("association endpoint located", zap.String("endpoint", endpoint))
		return endpoint, nil
	}

	return "", ErrNoEndpoint
}

// Resolved returns the remembered endpoint, if any.
func (l *ProbingLocator) Resolved() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolved
}

// Reset forgets the remembered endpoint.
func (l *ProbingLocator) Reset() {
	l.mu.Lock()
	l.resolved = ""
	l.mu.Unlock()
}

// endpointPath normalizes a candidate into "/name/" form. Absolute URLs only
// get a trailing slash.
func endpointPath(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return strings.TrimRight(name, "/") + "/"
	}
	return "/" + strings.Trim(name, "/") + "/"
}

func rowPath(endpoint string, rowID int64) string {
	return strings.TrimRight(endpoint, "/") + "/" + strconv.FormatInt(rowID, 10) + "/"
}

func articlePath(articleID int64) string {
	return "/articles/" + strconv.FormatInt(articleID, 10) + "/"
}

func associationQuery(articleID, genreID int64, pageSize int) url.Values {
	q := url.Values{}
	q.Set("article", strconv.FormatInt(articleID, 10))
	if genreID > 0 {
		q.Set("genre", strconv.FormatInt(genreID, 10))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	return q
}
