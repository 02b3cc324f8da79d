// Package scope resolves which record owners a viewer is allowed to see.
// Admins see everything; everyone else sees themselves plus the members of
// the groups they belong to.
package scope

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"kharcha/internal/cache"
	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/store"
)

const (
	usersCollection  = "users"
	groupsCollection = "groups"

	memberCacheSize = 128
	memberCacheTTL  = 5 * time.Minute
)

type Resolver struct {
	store   store.Store
	members *cache.LRU[[]string]
	logger  *log.Logger
}

func NewResolver(s store.Store) *Resolver {
	return &Resolver{
		store:   s,
		members: cache.NewLRU[[]string](memberCacheSize, memberCacheTTL),
		logger:  log.Component(log.ComponentScope),
	}
}

// Invalidate drops cached group memberships, forcing the next resolution
// to re-read group documents. Called on sign-out and after group edits.
func (r *Resolver) Invalidate() {
	r.members.Purge()
}

func (r *Resolver) groupMembers(ctx context.Context, gid string) ([]string, error) {
	if members, ok := r.members.Get(gid); ok {
		return members, nil
	}
	doc, err := r.store.Get(ctx, groupsCollection, gid)
	if err != nil {
		return nil, err
	}
	members := store.DecodeGroup(doc).Members
	r.members.Set(gid, members)
	return members, nil
}

// VisibleOwners computes the viewer's visibility scope. Admin role short-
// circuits to the unrestricted scope regardless of group membership. For
// plain users, group membership is read from group documents; group ids
// with no document fall back to a batched membership query over the users
// collection, since older data only recorded membership on the user side.
// The viewer's own id is always part of the scope.
func (r *Resolver) VisibleOwners(ctx context.Context, viewer core.AppUser) (core.Scope, error) {
	if viewer.IsAdmin() {
		return core.AllRecords(), nil
	}

	owners := map[string]bool{viewer.ID: true}

	var legacy []string
	for _, gid := range viewer.GroupIDs {
		members, err := r.groupMembers(ctx, gid)
		if errors.Is(err, store.ErrNotFound) {
			legacy = append(legacy, gid)
			continue
		}
		if err != nil {
			return core.Scope{}, fmt.Errorf("load group %s: %w", gid, err)
		}
		for _, uid := range members {
			owners[uid] = true
		}
	}

	if len(legacy) > 0 {
		r.logger.DebugContext(ctx, "resolving groups without documents from user membership",
			"count", len(legacy))
		docs, err := store.FetchArrayContainsAny(ctx, r.store, usersCollection, "groupIds", legacy)
		if err != nil {
			return core.Scope{}, fmt.Errorf("expand group members: %w", err)
		}
		for _, doc := range docs {
			if u := store.DecodeUser(doc); u.ID != "" {
				owners[u.ID] = true
			}
		}
	}

	ids := make([]string, 0, len(owners))
	for id := range owners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return core.ByUserIDs(ids), nil
}

// VisibleGroups returns the group ids whose records the viewer may read:
// every group in the system for admins, the viewer's own groups otherwise.
func (r *Resolver) VisibleGroups(ctx context.Context, viewer core.AppUser) ([]string, error) {
	if !viewer.IsAdmin() {
		return viewer.GroupIDs, nil
	}

	docs, err := r.store.Query(ctx, store.Query{Collection: groupsCollection})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}
