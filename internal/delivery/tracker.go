// Package delivery tracks recurring household deliveries (milk, maid, ...)
// as a tri-state per (group, date, item). All items' states for one group
// live in a single document keyed date -> item -> state, written with
// field-merge semantics so concurrent edits to different items survive.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/scope"
	"kharcha/internal/store"
)

const statusCollection = "deliveryStatus"

type State string

const (
	// StateUnset is the implicit default for any (group, date, item)
	// combination with no recorded entry.
	StateUnset        State = ""
	StateDelivered    State = "delivered"
	StateNotDelivered State = "not_delivered"
)

type Item struct {
	ID   string
	Name string
}

// Status is the merged view: groupId -> date (YYYY-MM-DD) -> itemId -> state.
type Status map[string]map[string]map[string]State

type Tracker struct {
	store    store.Store
	resolver *scope.Resolver
	logger   *log.Logger

	mu    sync.Mutex
	items []Item
}

func NewTracker(s store.Store, resolver *scope.Resolver) *Tracker {
	return &Tracker{
		store:    s,
		resolver: resolver,
		logger:   log.Component(log.ComponentDelivery),
		items: []Item{
			{ID: "milk", Name: "Milk"},
			{ID: "maid", Name: "Maid"},
		},
	}
}

// Items returns the tracked items.
func (t *Tracker) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Item(nil), t.items...)
}

// AddItem registers a new tracked item; its id is the lowercased name with
// whitespace collapsed to dashes.
func (t *Tracker) AddItem(name string) Item {
	item := Item{
		ID:   strings.Join(strings.Fields(strings.ToLower(name)), "-"),
		Name: name,
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.items {
		if existing.ID == item.ID {
			return existing
		}
	}
	t.items = append(t.items, item)
	return item
}

// SetState records the state of one item on one date for a group. Only the
// touched item key is written; sibling items and dates are preserved by the
// store's merge write, so two members toggling different items on the same
// date cannot clobber each other.
func (t *Tracker) SetState(ctx context.Context, itemID, date string, state State, groupID string) error {
	if groupID == "" {
		return fmt.Errorf("set delivery state: no group selected")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("set delivery state: bad date %q: %w", date, err)
	}
	switch state {
	case StateUnset, StateDelivered, StateNotDelivered:
	default:
		return fmt.Errorf("set delivery state: unknown state %q", state)
	}

	err := t.store.Set(ctx, statusCollection, groupID, map[string]any{
		date: map[string]any{itemID: string(state)},
	}, true)
	if err != nil {
		return fmt.Errorf("persist delivery state: %w", err)
	}
	t.logger.DebugContext(ctx, "delivery state set",
		"group", groupID, "date", date, "item", itemID, "state", state)
	return nil
}

// Load returns the merged delivery status for every group the viewer may
// see. Groups with no status document appear with an empty map.
func (t *Tracker) Load(ctx context.Context, viewer core.AppUser) (Status, error) {
	groupIDs, err := t.resolver.VisibleGroups(ctx, viewer)
	if err != nil {
		return nil, fmt.Errorf("resolve visible groups: %w", err)
	}

	merged := Status{}
	for _, gid := range groupIDs {
		doc, err := t.store.Get(ctx, statusCollection, gid)
		if errors.Is(err, store.ErrNotFound) {
			merged[gid] = map[string]map[string]State{}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load delivery status for %s: %w", gid, err)
		}
		merged[gid] = decodeGroupStatus(doc.Data)
	}
	return merged, nil
}

// CountDelivered reports, per item, on how many dates of the period the
// item was delivered for the group. Every calendar date in the period is
// enumerated: a date with no entry simply contributes zero.
func (t *Tracker) CountDelivered(ctx context.Context, groupID string, period Period) (map[string]int, error) {
	doc, err := t.store.Get(ctx, statusCollection, groupID)
	groupStatus := map[string]map[string]State{}
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load delivery status for %s: %w", groupID, err)
	default:
		groupStatus = decodeGroupStatus(doc.Data)
	}

	counts := map[string]int{}
	for _, item := range t.Items() {
		counts[item.ID] = 0
	}
	for _, date := range period.Dates() {
		for itemID, state := range groupStatus[date] {
			if state == StateDelivered {
				counts[itemID]++
			}
		}
	}
	return counts, nil
}

func decodeGroupStatus(data map[string]any) map[string]map[string]State {
	out := map[string]map[string]State{}
	for date, v := range data {
		items, ok := v.(map[string]any)
		if !ok {
			continue
		}
		day := map[string]State{}
		for itemID, sv := range items {
			if s, ok := sv.(string); ok && s != "" {
				day[itemID] = State(s)
			}
		}
		out[date] = day
	}
	return out
}
