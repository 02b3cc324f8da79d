package core

import (
	"errors"
	"strings"
	"time"
)

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Expense categories shown in the app. Advisory only: the store does not
// enforce them, and aggregation keys on the raw string value.
const (
	CategoryGroceries  = "Groceries"
	CategoryVegetables = "Vegetables"
	CategoryFruits     = "Fruits"
	CategorySnacks     = "Snacks"
	CategoryTransport  = "Transport"
	CategoryUtilities  = "Utilities"
	CategoryShopping   = "Shopping"
	CategoryOther      = "Other"
)

type (
	Role string

	// Expense is one logged expense record. GroupID is a read-visibility
	// tag; the record stays owned by UserID.
	Expense struct {
		ID          string    `firestore:"id" json:"id"`
		Title       string    `firestore:"title" json:"title"`
		Category    string    `firestore:"category" json:"category"`
		Amount      float64   `firestore:"amount" json:"amount"`
		Currency    string    `firestore:"currency" json:"currency"`
		UserID      string    `firestore:"userId" json:"userId"`
		GroupID     string    `firestore:"groupId" json:"groupId,omitempty"`
		Comment     string    `firestore:"comment" json:"comment,omitempty"`
		ExpenseDate time.Time `firestore:"expenseDate" json:"expenseDate"`
		Mood        string    `firestore:"mood" json:"mood,omitempty"`
	}

	// AppUser is the store-side profile created on first sign-in.
	AppUser struct {
		ID           string   `firestore:"id" json:"id"`
		Email        string   `firestore:"email" json:"email"`
		FirstName    string   `firestore:"firstName" json:"firstName,omitempty"`
		Role         Role     `firestore:"role" json:"role"`
		GroupIDs     []string `firestore:"groupIds" json:"groupIds"`
		LoginMessage string   `firestore:"loginMessage" json:"loginMessage,omitempty"`
	}

	Group struct {
		ID      string   `firestore:"id" json:"id"`
		Name    string   `firestore:"name" json:"name"`
		Members []string `firestore:"members" json:"members"`
	}

	Notification struct {
		ID        string    `firestore:"id" json:"id"`
		Message   string    `firestore:"message" json:"message"`
		Read      bool      `firestore:"read" json:"read"`
		CreatedAt time.Time `firestore:"createdAt" json:"createdAt"`
		CreatedBy string    `firestore:"createdBy" json:"createdBy"`
		GroupIDs  []string  `firestore:"groupIds" json:"groupIds,omitempty"`
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must not be negative")
	ErrInvalidCurrency  = errors.New("unknown currency")
	ErrEmptyTitle       = errors.New("empty title")
	ErrMissingOwner     = errors.New("expense has no owner")
	ErrPermissionDenied = errors.New("permission denied")
)

// Currencies accepted on an expense.
var Currencies = []string{"INR", "USD", "EUR"}

func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// IsAdmin reports whether the user sees every group in the system.
func (u AppUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// InGroup reports whether the user belongs to the given group.
func (u AppUser) InGroup(groupID string) bool {
	for _, gid := range u.GroupIDs {
		if gid == groupID {
			return true
		}
	}
	return false
}

// DisplayName returns the group name, falling back to its id.
func (g Group) DisplayName() string {
	if g.Name != "" {
		return g.Name
	}
	return g.ID
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	if e.UserID == "" {
		return ErrMissingOwner
	}
	valid := false
	for _, c := range Currencies {
		if e.Currency == c {
			valid = true
			break
		}
	}
	if !valid {
		return ErrInvalidCurrency
	}
	return nil
}

// VisibleTo reports whether a notification should be shown to the viewer:
// either the viewer created it or it is tagged for one of their groups.
func (n Notification) VisibleTo(viewer AppUser) bool {
	if n.CreatedBy == viewer.ID {
		return true
	}
	for _, gid := range n.GroupIDs {
		if viewer.InGroup(gid) {
			return true
		}
	}
	return false
}
