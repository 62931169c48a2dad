// Package reconcile keeps an article's genre associations equal to a desired
// set. A pass reads the current rows, diffs them against the desired ids and
// applies the difference one request at a time.
//
// Deletions are conservative: when the backend returns rows but none of them
// can be attributed to the article, nothing is deleted in that pass.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/melissa98m/weeb-website-sub000/internal/models"
)

const (
	defaultPageSize = 1000
	defaultTimeout  = 30 * time.Second
	maxPages        = 100
)

// ErrIncompleteList means the backend announced more association rows than
// could be read.
var ErrIncompleteList = errors.New("association list is incomplete")

// Transport is the credentialed JSON client the reconciler talks through.
// Unsafe verbs are expected to carry the CSRF token.
type Transport interface {
	Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error)
	Post(ctx context.Context, endpoint string, body interface{}) ([]byte, error)
	Patch(ctx context.Context, endpoint string, body interface{}) ([]byte, error)
	Delete(ctx context.Context, endpoint string) error
}

// Options tune a Reconciler.
type Options struct {
	PageSize int
	Timeout  time.Duration
	// Strict makes Reconcile return a *PartialError when any mutation failed.
	Strict bool
}

type Reconciler struct {
	client  Transport
	locator Locator
	logger  *zap.Logger
	opts    Options

	mu       sync.Mutex
	inflight map[int64]*articleLock
}

type articleLock struct {
	sem  chan struct{}
	refs int
}

func New(client Transport, locator Locator, logger *zap.Logger, opts Options) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Reconciler{
		client:   client,
		locator:  locator,
		logger:   logger,
		opts:     opts,
		inflight: make(map[int64]*articleLock),
	}
}

// Reconcile makes the article's genres equal to desired. Read failures are
// returned as errors. Per-item mutation failures are collected in the report;
// in strict mode they are also returned as a *PartialError.
func (r *Reconciler) Reconcile(ctx context.Context, articleID int64, desired []models.Genre) (*Report, error) {
	return r.run(ctx, articleID, desired, false)
}

// Plan reads the current state and returns the plan without applying it.
func (r *Reconciler) Plan(ctx context.Context, articleID int64, desired []models.Genre) (*Report, error) {
	return r.run(ctx, articleID, desired, true)
}

func (r *Reconciler) run(ctx context.Context, articleID int64, desired []models.Genre, dryRun bool) (*Report, error) {
	if articleID <= 0 {
		return nil, fmt.Errorf("invalid article id %d", articleID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	unlock, err := r.lock(ctx, articleID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ids := DesiredIDs(desired)
	obs, err := r.Observe(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to read genres of article %d: %w", articleID, err)
	}

	report := newReport(articleID, obs, ids)
	if report.Fallback {
		report.Plan = Diff(obs.Current, ids, true)
	} else {
		report.Plan = Diff(obs.Current, ids, obs.DeletionsAllowed())
		if report.Plan.DeletionsSuppressed {
			r.logger.Info("no returned row belongs to the article, ignoring them",
				zap.Int64("article", articleID),
				zap.Int("rows", obs.RawCount))
		}
	}

	if dryRun {
		report.DryRun = true
		return report, nil
	}

	if report.Fallback {
		err = r.replace(ctx, articleID, ids, report)
	} else {
		err = r.apply(ctx, articleID, obs.Endpoint, report)
	}
	if err != nil {
		return report, fmt.Errorf("reconciliation of article %d interrupted: %w", articleID, err)
	}

	if perr := report.Err(); perr != nil {
		if r.opts.Strict {
			return report, perr
		}
		r.logger.Warn("some genre changes were not applied",
			zap.Int64("article", articleID),
			zap.Int("failed", len(report.Failed)),
			zap.Int("attempted", report.Attempted()))
	}
	return report, nil
}

// Observe reads the association rows of an article from the located endpoint,
// or from the article detail when no endpoint exists.
func (r *Reconciler) Observe(ctx context.Context, articleID int64) (*Observation, error) {
	endpoint, err := r.locator.Locate(ctx, articleID)
	if errors.Is(err, ErrNoEndpoint) {
		return r.observeArticle(ctx, articleID)
	}
	if err != nil {
		return nil, err
	}

	raw, err := r.listRows(ctx, endpoint, associationQuery(articleID, 0, r.opts.PageSize))
	if err != nil {
		return nil, err
	}

	rows := Normalize(raw)
	return &Observation{
		Endpoint: endpoint,
		RawCount: len(raw),
		Rows:     rows,
		Current:  Attributed(rows, articleID),
	}, nil
}

// listRows reads every page of an association list, following next links.
// A list that announces more rows than could be read is an error, so a pass
// never acts on a partial current set.
func (r *Reconciler) listRows(ctx context.Context, endpoint string, query url.Values) ([]interface{}, error) {
	var all []interface{}
	total := 0
	seen := map[string]bool{query.Encode(): true}

	for pages := 1; ; pages++ {
		body, err := r.client.Get(ctx, endpoint, query)
		if err != nil {
			return nil, err
		}
		rows, page, err := decodePage(body)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if page.Total > total {
			total = page.Total
		}
		if page.Next == "" {
			break
		}
		if pages == maxPages {
			return nil, fmt.Errorf("%w: more than %d pages", ErrIncompleteList, maxPages)
		}

		next, err := url.Parse(page.Next)
		if err != nil {
			return nil, fmt.Errorf("invalid next link %q: %w", page.Next, err)
		}
		query = next.Query()
		if seen[query.Encode()] {
			return nil, fmt.Errorf("%w: next link %q repeats", ErrIncompleteList, page.Next)
		}
		seen[query.Encode()] = true
	}

	if total > len(all) {
		return nil, fmt.Errorf("%w: read %d of %d rows", ErrIncompleteList, len(all), total)
	}
	return all, nil
}

// observeArticle reads the embedded genre list of the article. A failed read
// yields an empty observation; only cancellation is returned.
func (r *Reconciler) observeArticle(ctx context.Context, articleID int64) (*Observation, error) {
	body, err := r.client.Get(ctx, articlePath(articleID), nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		r.logger.Warn("article detail unreadable, assuming no genres",
			zap.Int64("article", articleID), zap.Error(err))
		return &Observation{}, nil
	}

	rows, err := embeddedRows(body, articleID)
	if err != nil {
		r.logger.Warn("article detail undecodable, assuming no genres",
			zap.Int64("article", articleID), zap.Error(err))
		return &Observation{}, nil
	}
	return &Observation{RawCount: len(rows), Rows: rows, Current: rows}, nil
}

// apply runs the plan against the association endpoint, one request at a time.
// Only cancellation stops the loop.
func (r *Reconciler) apply(ctx context.Context, articleID int64, endpoint string, report *Report) error {
	for _, genre := range report.Plan.ToAdd {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := r.client.Post(ctx, endpoint, map[string]int64{"article": articleID, "genre": genre})
		r.logMutation(OpAdd, articleID, genre, err)
		report.record(Outcome{Op: OpAdd, Genre: genre, Err: err})
	}

	discovered := make(map[int64]bool)
	for _, removal := range report.Plan.ToRemove {
		if err := ctx.Err(); err != nil {
			return err
		}

		var rowIDs []int64
		if removal.RowID != nil {
			rowIDs = []int64{*removal.RowID}
		} else {
			if discovered[removal.Genre] {
				continue
			}
			discovered[removal.Genre] = true

			ids, err := r.discover(ctx, endpoint, articleID, removal.Genre)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				report.skip(Outcome{Op: OpRemove, Genre: removal.Genre, Reason: "row lookup failed: " + err.Error()})
				continue
			}
			if len(ids) == 0 {
				report.skip(Outcome{Op: OpRemove, Genre: removal.Genre, Reason: "row id not found"})
				continue
			}
			rowIDs = ids
		}

		for _, id := range rowIDs {
			rowID := id
			err := r.client.Delete(ctx, rowPath(endpoint, rowID))
			r.logMutation(OpRemove, articleID, removal.Genre, err)
			report.record(Outcome{Op: OpRemove, Genre: removal.Genre, RowID: &rowID, Err: err})
		}
	}

	return ctx.Err()
}

// discover looks up the row ids linking articleID to genre.
func (r *Reconciler) discover(ctx context.Context, endpoint string, articleID, genre int64) ([]int64, error) {
	raw, err := r.listRows(ctx, endpoint, associationQuery(articleID, genre, r.opts.PageSize))
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, row := range Normalize(raw) {
		if row.Article == articleID && row.Genre == genre && row.ID != nil {
			ids = append(ids, *row.ID)
		}
	}
	return ids, nil
}

// replace is the fallback when no association endpoint exists: one bulk PATCH
// of the article's genre list.
func (r *Reconciler) replace(ctx context.Context, articleID int64, desired []int64, report *Report) error {
	genres := append([]int64{}, desired...)
	_, err := r.client.Patch(ctx, articlePath(articleID), map[string][]int64{"genres": genres})
	r.logMutation(OpReplace, articleID, 0, err)
	report.record(Outcome{Op: OpReplace, Err: err})
	return ctx.Err()
}

func (r *Reconciler) logMutation(op Op, articleID, genre int64, err error) {
	if err != nil {
		r.logger.Warn("genre change failed",
			zap.String("op", string(op)),
			zap.Int64("article", articleID),
			zap.Int64("genre", genre),
			zap.Error(err))
		return
	}
	r.logger.Debug("genre change applied",
		zap.String("op", string(op)),
		zap.Int64("article", articleID),
		zap.Int64("genre", genre))
}

// lock serializes passes for the same article.
func (r *Reconciler) lock(ctx context.Context, articleID int64) (func(), error) {
	r.mu.Lock()
	l, ok := r.inflight[articleID]
	if !ok {
		l = &articleLock{sem: make(chan struct{}, 1)}
		r.inflight[articleID] = l
	}
	l.refs++
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.inflight, articleID)
		}
		r.mu.Unlock()
	}

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}

	return func() {
		<-l.sem
		release()
	}, nil
}
