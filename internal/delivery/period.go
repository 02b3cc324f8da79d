package delivery

import "time"

// Period is a calendar day, month or year used by delivery reports.
type Period struct {
	start time.Time
	end   time.Time // exclusive
}

func Day(year int, month time.Month, day int) Period {
	start := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Period{start: start, end: start.AddDate(0, 0, 1)}
}

func Month(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{start: start, end: start.AddDate(0, 1, 0)}
}

func Year(year int) Period {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Period{start: start, end: start.AddDate(1, 0, 0)}
}

// Dates enumerates every calendar date of the period as YYYY-MM-DD keys.
func (p Period) Dates() []string {
	var out []string
	for d := p.start; d.Before(p.end); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format("2006-01-02"))
	}
	return out
}
