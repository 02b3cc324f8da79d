// Package users is the user directory: profile listing, role management
// and group materialization.
package users

import (
	"context"
	"fmt"
	"sort"

	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/store"
)

const (
	usersCollection  = "users"
	groupsCollection = "groups"
)

type Service struct {
	store  store.Store
	logger *log.Logger
}

func NewService(s store.Store) *Service {
	return &Service{store: s, logger: log.Component(log.ComponentUsers)}
}

// List returns every user profile.
func (s *Service) List(ctx context.Context) ([]core.AppUser, error) {
	docs, err := s.store.Query(ctx, store.Query{Collection: usersCollection})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]core.AppUser, 0, len(docs))
	for _, doc := range docs {
		out = append(out, store.DecodeUser(doc))
	}
	return out, nil
}

// Get loads a single profile by id.
func (s *Service) Get(ctx context.Context, id string) (core.AppUser, error) {
	doc, err := s.store.Get(ctx, usersCollection, id)
	if err != nil {
		return core.AppUser{}, fmt.Errorf("get user %s: %w", id, err)
	}
	return store.DecodeUser(doc), nil
}

// UpdateRole changes a user's role. Only admins may do this; the write is
// a field merge so the rest of the profile is untouched.
func (s *Service) UpdateRole(ctx context.Context, viewer core.AppUser, userID string, role core.Role) error {
	if !viewer.IsAdmin() {
		return core.ErrPermissionDenied
	}
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	err := s.store.Set(ctx, usersCollection, userID, map[string]any{"role": string(role)}, true)
	if err != nil {
		return fmt.Errorf("update role for %s: %w", userID, err)
	}
	s.logger.InfoContext(ctx, "user role updated",
		log.FieldUser, userID, "role", role, "by", viewer.ID)
	return nil
}

// Groups returns every group with its member list. Group documents are the
// source of truth; users whose groupIds name a group with no document get a
// reconstructed group so older data keeps working.
func (s *Service) Groups(ctx context.Context) ([]core.Group, error) {
	docs, err := s.store.Query(ctx, store.Query{Collection: groupsCollection})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	byID := map[string]core.Group{}
	for _, doc := range docs {
		byID[doc.ID] = store.DecodeGroup(doc)
	}

	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		for _, gid := range u.GroupIDs {
			g, ok := byID[gid]
			if !ok {
				g = core.Group{ID: gid, Name: gid}
			}
			if !containsID(g.Members, u.ID) {
				g.Members = append(g.Members, u.ID)
			}
			byID[gid] = g
		}
	}

	out := make([]core.Group, 0, len(byID))
	for _, g := range byID {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
