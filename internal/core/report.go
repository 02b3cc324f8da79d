package core

import "time"

// Report holds keyed running sums over a set of expenses. Keys:
// Daily "2006-01-02", Monthly "2006-01", Yearly "2006", Category the raw
// category string. Amounts are summed as-is; no currency conversion.
type Report struct {
	Daily     map[string]float64
	Monthly   map[string]float64
	Yearly    map[string]float64
	Category  map[string]float64
	Groupwise map[string]float64
}

// NewReport returns a report with all maps allocated and empty.
func NewReport() Report {
	return Report{
		Daily:     map[string]float64{},
		Monthly:   map[string]float64{},
		Yearly:    map[string]float64{},
		Category:  map[string]float64{},
		Groupwise: map[string]float64{},
	}
}

// Aggregate sums expenses into day, month, year and category buckets.
// Bucket keys are derived in loc; callers pass the viewer's zone, so the
// same records can bucket differently for viewers in different zones.
// Input must already be deduplicated by expense id. Never fails: empty
// input yields empty maps.
func Aggregate(expenses []Expense, loc *time.Location) Report {
	if loc == nil {
		loc = time.Local
	}
	r := NewReport()
	for _, e := range expenses {
		d := e.ExpenseDate.In(loc)
		r.Daily[d.Format("2006-01-02")] += e.Amount
		r.Monthly[d.Format("2006-01")] += e.Amount
		r.Yearly[d.Format("2006")] += e.Amount
		r.Category[e.Category] += e.Amount
	}
	return r
}

// GroupwiseTotals sums expenses per group, keyed by the group's display
// name. An expense counts toward a group when its owner is a member.
func GroupwiseTotals(expenses []Expense, groups []Group) map[string]float64 {
	members := make(map[string]map[string]bool, len(groups))
	for _, g := range groups {
		set := make(map[string]bool, len(g.Members))
		for _, uid := range g.Members {
			set[uid] = true
		}
		members[g.ID] = set
	}

	totals := map[string]float64{}
	for _, g := range groups {
		for _, e := range expenses {
			if members[g.ID][e.UserID] {
				totals[g.DisplayName()] += e.Amount
			}
		}
	}
	return totals
}

// Merge adds all of other's buckets into r. Sums are commutative, so
// merging partial reports in any order gives the same result.
func (r Report) Merge(other Report) Report {
	mergeInto(r.Daily, other.Daily)
	mergeInto(r.Monthly, other.Monthly)
	mergeInto(r.Yearly, other.Yearly)
	mergeInto(r.Category, other.Category)
	mergeInto(r.Groupwise, other.Groupwise)
	return r
}

func mergeInto(dst, src map[string]float64) {
	for k, v := range src {
		dst[k] += v
	}
}
