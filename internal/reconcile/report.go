package reconcile

import (
	"fmt"
)

// Op is the kind of mutation an Outcome describes.
type Op string

const (
	OpAdd     Op = "add"
	OpRemove  Op = "remove"
	OpReplace Op = "replace" // bulk PATCH of the article's genres
)

// Outcome records one attempted (or skipped) mutation.
type Outcome struct {
	Op     Op     `json:"op"`
	Genre  int64  `json:"genre,omitempty"`
	RowID  *int64 `json:"row_id,omitempty"`
	Err    error  `json:"-"`
	Reason string `json:"reason,omitempty"`
}

func (o Outcome) String() string {
	switch o.Op {
	case OpReplace:
		return "replace genres"
	case OpRemove:
		if o.RowID != nil {
			return fmt.Sprintf("remove genre %d (row %d)", o.Genre, *o.RowID)
		}
		return fmt.Sprintf("remove genre %d", o.Genre)
	default:
		return fmt.Sprintf("%s genre %d", o.Op, o.Genre)
	}
}

// Report is the result of one reconciliation pass.
type Report struct {
	ArticleID int64   `json:"article_id"`
	Endpoint  string  `json:"endpoint,omitempty"`
	Fallback  bool    `json:"fallback"`
	Observed  []int64 `json:"observed"`
	Desired   []int64 `json:"desired"`
	Plan      Plan    `json:"plan"`
	DryRun    bool    `json:"dry_run,omitempty"`

	// Unattributed counts returned rows that did not belong to the article.
	Unattributed int `json:"unattributed_rows,omitempty"`

	Applied []Outcome `json:"applied"`
	Failed  []Outcome `json:"failed"`
	Skipped []Outcome `json:"skipped"`
}

func newReport(articleID int64, obs *Observation, desired []int64) *Report {
	report := &Report{
		ArticleID: articleID,
		Endpoint:  obs.Endpoint,
		Fallback:  obs.Endpoint == "",
		Observed:  obs.GenreIDs(),
		Desired:   desired,
		Applied:   []Outcome{},
		Failed:    []Outcome{},
		Skipped:   []Outcome{},
	}
	report.Unattributed = obs.RawCount - len(obs.Current)
	return report
}

func (r *Report) record(o Outcome) {
	if o.Err != nil {
		if o.Reason == "" {
			o.Reason = o.Err.Error()
		}
		r.Failed = append(r.Failed, o)
		return
	}
	r.Applied = append(r.Applied, o)
}

func (r *Report) skip(o Outcome) {
	r.Skipped = append(r.Skipped, o)
}

// Attempted is the number of mutations that were sent to the backend.
func (r *Report) Attempted() int {
	return len(r.Applied) + len(r.Failed)
}

// Err returns a *PartialError when any mutation failed.
func (r *Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return &PartialError{
		Failed:   len(r.Failed),
		Total:    r.Attempted(),
		Failures: append([]Outcome(nil), r.Failed...),
	}
}

// PartialError reports mutations that could not be applied.
type PartialError struct {
	Failed   int
	Total    int
	Failures []Outcome
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d of %d changes could not be applied", e.Failed, e.Total)
}

// Unwrap exposes the per-item errors to errors.Is and errors.As.
func (e *PartialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}
