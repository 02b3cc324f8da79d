package core

// Scope is the set of owner ids a viewer is allowed to see records for.
// All set means every record in the system (admin viewers); otherwise
// UserIDs lists the visible owners and always includes the viewer.
type Scope struct {
	All     bool
	UserIDs []string
}

// AllRecords is the unrestricted admin scope.
func AllRecords() Scope {
	return Scope{All: true}
}

// ByUserIDs builds a restricted scope from a set of owner ids.
func ByUserIDs(ids []string) Scope {
	return Scope{UserIDs: ids}
}

// IsEmpty reports whether the scope matches nothing. An empty scope is a
// valid "no data" state: callers skip querying entirely rather than issue
// a query with an empty identifier set.
func (s Scope) IsEmpty() bool {
	return !s.All && len(s.UserIDs) == 0
}
