// Package expense holds the write path for expense records: creation,
// admin-only delta updates, and scope-filtered listing. Records are never
// physically deleted.
package expense

import (
	"context"
	"fmt"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/store"
)

const expensesCollection = "expenses"

// Notifier fans group activity out to the rest of the household. A nil
// notifier disables fan-out without failing the write.
type Notifier interface {
	Activity(ctx context.Context, message, createdBy string, groupIDs []string) error
}

type Service struct {
	store    store.Store
	notifier Notifier
	logger   *log.Logger
}

func NewService(s store.Store, notifier Notifier) *Service {
	return &Service{
		store:    s,
		notifier: notifier,
		logger:   log.Component(log.ComponentExpense),
	}
}

// Create validates and stores a new expense owned by the viewer. A missing
// expense date defaults to now: the record's creation time and its expense
// date are distinct, user-settable things.
func (s *Service) Create(ctx context.Context, viewer core.AppUser, e core.Expense) (string, error) {
	if viewer.ID == "" {
		return "", fmt.Errorf("create expense: no signed-in user")
	}
	e.UserID = viewer.ID
	if e.ExpenseDate.IsZero() {
		e.ExpenseDate = time.Now()
	}
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validate expense: %w", err)
	}

	id, err := s.store.Add(ctx, expensesCollection, store.EncodeExpense(e))
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}
	s.logger.InfoContext(ctx, "expense saved", log.NewFields().
		WithOperation(log.OpCreate).
		WithUser(viewer.ID).
		WithExpense(id, e.Amount, e.Currency, e.Category).
		ToSlice()...)

	if s.notifier != nil && e.GroupID != "" {
		msg := fmt.Sprintf("%s added %q (%.2f %s)", viewer.Email, e.Title, e.Amount, e.Currency)
		if err := s.notifier.Activity(ctx, msg, viewer.ID, []string{e.GroupID}); err != nil {
			// The record is saved; a lost notification is not worth
			// failing the request over.
			s.logger.ErrorContext(ctx, "failed to publish activity",
				log.FieldExpense, id, log.FieldError, err)
		}
	}
	return id, nil
}

// Update applies a partial-field delta to an existing record. Only changed
// fields are written (merge semantics) and only admins may write.
func (s *Service) Update(ctx context.Context, viewer core.AppUser, id string, delta map[string]any) error {
	if !viewer.IsAdmin() {
		return core.ErrPermissionDenied
	}
	if len(delta) == 0 {
		return nil
	}
	// Ownership never transfers after creation.
	delete(delta, "userId")

	if _, err := s.store.Get(ctx, expensesCollection, id); err != nil {
		return fmt.Errorf("load expense %s: %w", id, err)
	}
	if err := s.store.Set(ctx, expensesCollection, id, delta, true); err != nil {
		return fmt.Errorf("update expense %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "expense updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldExpense, id,
		log.FieldUser, viewer.ID,
		"fields", len(delta))
	return nil
}

// Get loads a single record.
func (s *Service) Get(ctx context.Context, id string) (core.Expense, error) {
	doc, err := s.store.Get(ctx, expensesCollection, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %s: %w", id, err)
	}
	return store.DecodeExpense(doc), nil
}
