package engine

import "github.com/roach88/mirror/internal/model"

// RowDiff is the set of row writes that turns a baseline into the local
// row set.
type RowDiff struct {
	// Create holds local rows with no baseline counterpart.
	Create []model.Row
	// Update holds local rows whose baseline counterpart differs.
	Update []model.Row
	// Delete holds baseline rows with no local counterpart.
	Delete []model.Row
}

// Empty reports whether the diff has no operations.
func (d RowDiff) Empty() bool {
	return len(d.Create) == 0 && len(d.Update) == 0 && len(d.Delete) == 0
}

// DiffRows matches rows by id. A matched row is an update when its title,
// data source or any property value differs; blank and null are equal.
// Create and Update keep local order, Delete keeps baseline order.
func DiffRows(local, baseline []model.Row) RowDiff {
	base := make(map[string]model.Row, len(baseline))
	for _, r := range baseline {
		base[r.ID] = r
	}

	var d RowDiff
	seen := make(map[string]bool, len(local))
	for _, r := range local {
		seen[r.ID] = true
		b, ok := base[r.ID]
		switch {
		case !ok:
			d.Create = append(d.Create, r)
		case !r.Equal(b):
			d.Update = append(d.Update, r)
		}
	}
	for _, r := range baseline {
		if !seen[r.ID] {
			d.Delete = append(d.Delete, r)
		}
	}
	return d
}
