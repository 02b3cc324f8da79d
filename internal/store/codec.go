package store

import (
	"time"

	"kharcha/internal/core"
)

// Decoding in this file is the read-boundary schema migration: historical
// write sites populated fields inconsistently (`date` vs `expenseDate`,
// integer vs float amounts, RFC3339 vs plain dates), so every optional or
// shape-shifting field is normalized here exactly once instead of at each
// call site.

// DecodeExpense converts a raw document into a core.Expense.
func DecodeExpense(doc Document) core.Expense {
	e := core.Expense{
		ID:       doc.ID,
		Title:    str(doc.Data["title"]),
		Category: str(doc.Data["category"]),
		Amount:   num(doc.Data["amount"]),
		Currency: str(doc.Data["currency"]),
		UserID:   str(doc.Data["userId"]),
		GroupID:  str(doc.Data["groupId"]),
		Comment:  str(doc.Data["comment"]),
		Mood:     str(doc.Data["mood"]),
	}
	// Older records stored the timestamp under "date".
	if v, ok := doc.Data["expenseDate"]; ok {
		e.ExpenseDate = timestamp(v)
	} else {
		e.ExpenseDate = timestamp(doc.Data["date"])
	}
	return e
}

// EncodeExpense converts an expense to document fields. The id is the
// document key and is not duplicated into the fields.
func EncodeExpense(e core.Expense) map[string]any {
	return map[string]any{
		"title":       e.Title,
		"category":    e.Category,
		"amount":      e.Amount,
		"currency":    e.Currency,
		"userId":      e.UserID,
		"groupId":     e.GroupID,
		"comment":     e.Comment,
		"expenseDate": e.ExpenseDate.UTC().Format(time.RFC3339),
		"mood":        e.Mood,
	}
}

func DecodeUser(doc Document) core.AppUser {
	u := core.AppUser{
		ID:           str(doc.Data["id"]),
		Email:        str(doc.Data["email"]),
		FirstName:    str(doc.Data["firstName"]),
		Role:         core.Role(str(doc.Data["role"])),
		GroupIDs:     strs(doc.Data["groupIds"]),
		LoginMessage: str(doc.Data["loginMessage"]),
	}
	if u.ID == "" {
		u.ID = doc.ID
	}
	if !u.Role.IsValid() {
		u.Role = core.RoleUser
	}
	return u
}

func EncodeUser(u core.AppUser) map[string]any {
	return map[string]any{
		"id":           u.ID,
		"email":        u.Email,
		"firstName":    u.FirstName,
		"role":         string(u.Role),
		"groupIds":     u.GroupIDs,
		"loginMessage": u.LoginMessage,
	}
}

func DecodeGroup(doc Document) core.Group {
	g := core.Group{
		ID:      doc.ID,
		Name:    str(doc.Data["name"]),
		Members: strs(doc.Data["members"]),
	}
	return g
}

func EncodeGroup(g core.Group) map[string]any {
	return map[string]any{
		"name":    g.Name,
		"members": g.Members,
	}
}

func DecodeNotification(doc Document) core.Notification {
	return core.Notification{
		ID:        doc.ID,
		Message:   str(doc.Data["message"]),
		Read:      boolean(doc.Data["read"]),
		CreatedAt: timestamp(doc.Data["createdAt"]),
		CreatedBy: str(doc.Data["createdBy"]),
		GroupIDs:  strs(doc.Data["groupIds"]),
	}
}

func EncodeNotification(n core.Notification) map[string]any {
	return map[string]any{
		"message":   n.Message,
		"read":      n.Read,
		"createdAt": n.CreatedAt.UTC().Format(time.RFC3339),
		"createdBy": n.CreatedBy,
		"groupIds":  n.GroupIDs,
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func boolean(v any) bool {
	b, _ := v.(bool)
	return b
}

func num(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func strs(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, e := range vs {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// timestamp accepts the shapes timestamps were written in over time:
// time.Time (native store type), RFC3339 strings, plain YYYY-MM-DD strings
// and unix-millisecond numbers.
func timestamp(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.RFC3339, t); err == nil {
			return ts
		}
		if ts, err := time.ParseInLocation("2006-01-02", t, time.UTC); err == nil {
			return ts
		}
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case int64:
		return time.UnixMilli(t).UTC()
	}
	return time.Time{}
}
