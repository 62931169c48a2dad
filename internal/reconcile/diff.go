package reconcile

import "github.com/melissa98m/weeb-website-sub000/internal/models"

// Removal is one association row to delete. RowID is nil when the row's
// primary key is unknown and must be looked up before deleting.
type Removal struct {
	Genre int64  `json:"genre"`
	RowID *int64 `json:"row_id,omitempty"`
}

// Plan is the edit script turning the current associations into the desired set.
type Plan struct {
	ToAdd               []int64   `json:"to_add"`
	ToRemove            []Removal `json:"to_remove"`
	DeletionsSuppressed bool      `json:"deletions_suppressed,omitempty"`
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToRemove) == 0
}

// DesiredIDs reduces a genre list to unique positive ids, keeping first occurrence order.
func DesiredIDs(genres []models.Genre) []int64 {
	seen := make(map[int64]bool, len(genres))
	ids := make([]int64, 0, len(genres))
	for _, g := range genres {
		if g.ID <= 0 || seen[g.ID] {
			continue
		}
		seen[g.ID] = true
		ids = append(ids, g.ID)
	}
	return ids
}

// Diff computes ToAdd = desired - current and, when allowDelete is set,
// ToRemove = current - desired with one entry per row. It does no I/O.
func Diff(current []models.Association, desired []int64, allowDelete bool) Plan {
	have := make(map[int64]bool, len(current))
	for _, row := range current {
		have[row.Genre] = true
	}

	plan := Plan{ToAdd: []int64{}, ToRemove: []Removal{}}

	want := make(map[int64]bool, len(desired))
	for _, id := range desired {
		if want[id] {
			continue
		}
		want[id] = true
		if !have[id] {
			plan.ToAdd = append(plan.ToAdd, id)
		}
	}

	if !allowDelete {
		plan.DeletionsSuppressed = true
		return plan
	}

	for _, row := range current {
		if !want[row.Genre] {
			plan.ToRemove = append(plan.ToRemove, Removal{Genre: row.Genre, RowID: row.ID})
		}
	}
	return plan
}
