// Package report turns raw expense records into scoped statistical
// summaries: the resolver computes who the viewer may see, the batched
// fetcher pulls matching records, and the pure aggregation in core sums
// them into buckets.
package report

import (
	"context"
	"fmt"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/metrics"
	"kharcha/internal/scope"
	"kharcha/internal/store"
	"kharcha/internal/users"
)

const expensesCollection = "expenses"

type Service struct {
	store    store.Store
	resolver *scope.Resolver
	users    *users.Service
	loc      *time.Location
	logger   *log.Logger
}

// NewService builds a report service. loc is the timezone bucket keys are
// derived in; nil means the process-local zone, matching the device-local
// behavior of the mobile client.
func NewService(s store.Store, resolver *scope.Resolver, directory *users.Service, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		store:    s,
		resolver: resolver,
		users:    directory,
		loc:      loc,
		logger:   log.Component(log.ComponentReport),
	}
}

// Expenses returns every expense record visible to the viewer,
// deduplicated by record id.
func (s *Service) Expenses(ctx context.Context, viewer core.AppUser) ([]core.Expense, error) {
	sc, err := s.resolver.VisibleOwners(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("resolve scope: %w", err)
	}

	var docs []store.Document
	if sc.All {
		docs, err = s.store.Query(ctx, store.Query{Collection: expensesCollection})
		if err != nil {
			return nil, fmt.Errorf("list expenses: %w", err)
		}
	} else {
		docs, err = store.FetchWhereIn(ctx, s.store, expensesCollection, "userId", sc.UserIDs)
		if err != nil {
			return nil, fmt.Errorf("fetch expenses for scope: %w", err)
		}
	}

	out := make([]core.Expense, 0, len(docs))
	for _, doc := range docs {
		out = append(out, store.DecodeExpense(doc))
	}
	return out, nil
}

// Report fetches the viewer's visible expenses and aggregates them.
// Admin viewers additionally get group-wise totals.
func (s *Service) Report(ctx context.Context, viewer core.AppUser) (core.Report, []core.Expense, error) {
	expenses, err := s.Expenses(ctx, viewer)
	if err != nil {
		return core.NewReport(), nil, err
	}

	start := time.Now()
	rep := core.Aggregate(expenses, s.loc)
	if viewer.IsAdmin() {
		groups, err := s.users.Groups(ctx)
		if err != nil {
			return core.NewReport(), nil, fmt.Errorf("load groups for totals: %w", err)
		}
		rep.Groupwise = core.GroupwiseTotals(expenses, groups)
	}
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())

	s.logger.DebugContext(ctx, "report aggregated",
		log.FieldUser, viewer.ID,
		"records", len(expenses),
		"days", len(rep.Daily))
	return rep, expenses, nil
}

// DashboardStats returns the running totals shown on the dashboard: the
// overall sum and the current month's sum for the given group scope. An
// empty group list is a valid no-data state and produces zeros without
// querying the store.
func (s *Service) DashboardStats(ctx context.Context, groupIDs []string) (total, month float64, err error) {
	if len(groupIDs) == 0 {
		return 0, 0, nil
	}

	docs, err := store.FetchWhereIn(ctx, s.store, expensesCollection, "groupId", groupIDs)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch group expenses: %w", err)
	}

	now := time.Now().In(s.loc)
	monthKey := now.Format("2006-01")
	for _, doc := range docs {
		e := store.DecodeExpense(doc)
		total += e.Amount
		if e.ExpenseDate.In(s.loc).Format("2006-01") == monthKey {
			month += e.Amount
		}
	}
	return total, month, nil
}
