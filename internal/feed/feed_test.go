package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/erazemk/najdeno/internal/lifecycle"
	"github.com/erazemk/najdeno/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func item(id string, status model.Status) model.Item {
	return model.Item{ID: id, Name: "Item " + id, Category: model.CategoryKeys, Status: status}
}

func versioned(id string, status model.Status, v int64) model.Item {
	it := item(id, status)
	it.Version = v
	return it
}

func TestSubscriptionCoalesces(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(nil)
	defer sub.Close()

	hub.Publish(ItemChanged(item("a", model.StatusFound)))
	hub.Publish(ItemChanged(item("b", model.StatusFound)))
	hub.Publish(ItemChanged(item("a", model.StatusClaimed)))

	batch, err := sub.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 coalesced events, got %d", len(batch))
	}
	if batch[0].ID != "a" || batch[0].Item.Status != model.StatusClaimed {
		t.Errorf("expected latest state of a first, got %+v", batch[0])
	}
	if batch[1].ID != "b" {
		t.Errorf("expected b second, got %s", batch[1].ID)
	}
}

func TestSubscriptionMatch(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(Matcher("u1"))
	defer sub.Close()

	hub.Publish(NotificationCreated(model.Notification{ID: "n1", RecipientID: "u2"}))
	hub.Publish(NotificationCreated(model.Notification{ID: "n2", RecipientID: "u1"}))
	hub.Publish(ItemRemoved("x"))

	batch, err := sub.Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range batch {
		got = append(got, e.key())
	}
	if diff := cmp.Diff([]string{"notification:n2", "item:x"}, got); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestNextBlocksUntilPublish(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(nil)
	defer sub.Close()

	var wg sync.WaitGroup
	var batch []Event
	wg.Add(1)
	go func() {
		defer wg.Done()
		batch, _ = sub.Next(context.Background())
	}()

	time.Sleep(10 * time.Millisecond)
	hub.Publish(ItemChanged(item("a", model.StatusFound)))
	wg.Wait()

	if len(batch) != 1 {
		t.Errorf("expected one event, got %d", len(batch))
	}
}

func TestNextEndsOnCloseAndContext(t *testing.T) {
	hub := NewHub()

	sub := hub.Subscribe(nil)
	errc := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		errc <- err
	}()
	sub.Close()
	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub2 := hub.Subscribe(nil)
	defer sub2.Close()
	go func() {
		_, err := sub2.Next(ctx)
		errc <- err
	}()
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(nil)
	hub.Close()

	if _, err := sub.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after hub close, got %v", err)
	}
	late := hub.Subscribe(nil)
	if _, err := late.Next(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected late subscription to start closed, got %v", err)
	}
	if hub.Len() != 0 {
		t.Errorf("expected no subscriptions, got %d", hub.Len())
	}
}

func TestEventIsolatedFromCaller(t *testing.T) {
	it := item("a", model.StatusFound)
	it.ReportedBy = []string{"r1"}
	e := ItemChanged(it)
	it.ReportedBy[0] = "changed"
	if e.Item.ReportedBy[0] != "r1" {
		t.Error("event shares memory with the caller's item")
	}
}

func TestCacheReadThrough(t *testing.T) {
	loads := 0
	store := map[string]model.Item{"a": versioned("a", model.StatusFound, 1)}
	c := NewCache(func(ctx context.Context, id string) (*model.Item, error) {
		loads++
		it, ok := store[id]
		if !ok {
			return nil, nil
		}
		return &it, nil
	}, 0)
	ctx := context.Background()

	got, err := c.Get(ctx, "a")
	if err != nil || got == nil {
		t.Fatalf("Get: %v, %v", got, err)
	}
	got.Name = "mutated"
	again, _ := c.Get(ctx, "a")
	if again.Name != "Item a" {
		t.Error("cache entry modified through a returned copy")
	}
	if loads != 1 {
		t.Errorf("expected one load, got %d", loads)
	}

	c.Apply(ItemChanged(versioned("a", model.StatusClaimed, 2)))
	again, _ = c.Get(ctx, "a")
	if again.Status != model.StatusClaimed {
		t.Errorf("expected applied status, got %s", again.Status)
	}

	c.Apply(ItemRemoved("a"))
	delete(store, "a")
	missing, err := c.Get(ctx, "a")
	if err != nil || missing != nil {
		t.Errorf("expected removed item to miss, got %v, %v", missing, err)
	}
}

func TestCacheLoadDoesNotOverwriteNewer(t *testing.T) {
	var c *Cache
	c = NewCache(func(ctx context.Context, id string) (*model.Item, error) {
		// A commit lands while the load is in flight.
		c.Apply(ItemChanged(versioned(id, model.StatusVerified, 3)))
		stale := versioned(id, model.StatusFound, 1)
		return &stale, nil
	}, 0)

	c.Get(context.Background(), "a")
	got, _ := c.Get(context.Background(), "a")
	if got.Status != model.StatusVerified {
		t.Errorf("expected newer applied state, got %s", got.Status)
	}
}

func TestCacheDropsOutOfOrderSnapshots(t *testing.T) {
	c := NewCache(func(ctx context.Context, id string) (*model.Item, error) {
		return nil, nil
	}, 0)
	ctx := context.Background()

	c.Apply(ItemChanged(versioned("a", model.StatusVerified, 3)))
	c.Apply(ItemChanged(versioned("a", model.StatusClaimed, 2)))
	c.Apply(ItemChanged(versioned("a", model.StatusClaimed, 3)))
	got, _ := c.Get(ctx, "a")
	if got == nil || got.Status != model.StatusVerified || got.Version != 3 {
		t.Fatalf("expected version 3 verified to win, got %+v", got)
	}

	c.Apply(ItemChanged(versioned("a", model.StatusReturned, 4)))
	got, _ = c.Get(ctx, "a")
	if got.Status != model.StatusReturned {
		t.Errorf("expected newer snapshot applied, got %s", got.Status)
	}

	c.Apply(ItemChanged(versioned("b", model.StatusFound, 1)))
	c.Apply(ItemRemoved("b"))
	c.Apply(ItemChanged(versioned("b", model.StatusClaimed, 2)))
	if got, _ := c.Get(ctx, "b"); got != nil {
		t.Errorf("late snapshot resurrected a removed item: %+v", got)
	}
}

func TestCacheBookkeepingIsBounded(t *testing.T) {
	c := NewCache(func(ctx context.Context, id string) (*model.Item, error) {
		it := versioned(id, model.StatusFound, 1)
		return &it, nil
	}, 0)
	ctx := context.Background()

	for i := range maxTombstones + 10 {
		id := fmt.Sprintf("item-%d", i)
		c.Get(ctx, id)
		c.Invalidate(id)
		c.Apply(ItemRemoved(id))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.loading) != 0 {
		t.Errorf("expected no pending loads, got %d", len(c.loading))
	}
	if len(c.removed) != maxTombstones || len(c.order) != maxTombstones {
		t.Errorf("expected %d tombstones, got %d (queue %d)", maxTombstones, len(c.removed), len(c.order))
	}
	if _, ok := c.removed["item-0"]; ok {
		t.Error("oldest tombstone was not evicted")
	}
}

func TestCacheLimit(t *testing.T) {
	c := NewCache(func(ctx context.Context, id string) (*model.Item, error) {
		it := item(id, model.StatusFound)
		return &it, nil
	}, 2)
	for _, id := range []string{"a", "b", "c"} {
		c.Get(context.Background(), id)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 cached items, got %d", c.Len())
	}
}

func TestQueryMatch(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	base := model.Item{
		ID:        "a",
		Name:      "Red Backpack",
		Category:  model.CategoryOthers,
		Status:    model.StatusVerified,
		CreatedAt: now.Add(-48 * time.Hour),
	}

	tests := []struct {
		name  string
		query Query
		edit  func(*model.Item)
		want  bool
	}{
		{"empty query", Query{}, nil, true},
		{"hidden", Query{}, func(i *model.Item) { i.Hidden = true }, false},
		{"search name", Query{Search: "backpack"}, nil, true},
		{"search category", Query{Search: "OTH"}, nil, true},
		{"search miss", Query{Search: "phone"}, nil, false},
		{"category all", Query{Category: model.CategoryAll}, nil, true},
		{"category miss", Query{Category: model.CategoryKeys}, nil, false},
		{"group claimed", Query{Group: lifecycle.GroupClaimed}, nil, true},
		{"group found", Query{Group: lifecycle.GroupFound}, nil, false},
		{"inside window", Query{Window: DefaultWindow, Now: now}, nil, true},
		{"outside window", Query{Window: DefaultWindow, Now: now}, func(i *model.Item) { i.CreatedAt = now.Add(-8 * 24 * time.Hour) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := base
			if tt.edit != nil {
				tt.edit(&it)
			}
			if got := tt.query.Match(it); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQueryFilterAndVisible(t *testing.T) {
	items := []model.Item{item("a", model.StatusFound), item("b", model.StatusFound), item("c", model.StatusFound)}
	items[1].Hidden = true

	got := Query{Limit: 1}.Filter(items)
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("unexpected filter result %v", got)
	}
	all := Query{}.Filter(items)
	if len(all) != 2 {
		t.Errorf("expected hidden item dropped, got %d", len(all))
	}

	q := Query{Group: lifecycle.GroupFound}
	if !q.Visible(ItemChanged(item("a", model.StatusPendingApproval))) {
		t.Error("pending item should be visible in the found group")
	}
	if q.Visible(ItemChanged(item("a", model.StatusClaimed))) {
		t.Error("claimed item should leave the found group")
	}
	if q.Visible(ItemRemoved("a")) {
		t.Error("removed item should not be visible")
	}
}

func TestMatcherScopesPrivateEvents(t *testing.T) {
	match := Matcher("ana")
	note := NotificationCreated(model.Notification{ID: "n1", RecipientID: "ana"})
	other := NotificationCreated(model.Notification{ID: "n2", RecipientID: "bor"})
	msg := MessageAppended(model.Message{ItemID: "a", Seq: 3}, "ana", "bor")
	foreign := MessageAppended(model.Message{ItemID: "b", Seq: 1}, "bor", "cene")

	if !match(ItemChanged(item("a", model.StatusFound))) {
		t.Error("item events should pass")
	}
	if !match(note) || match(other) {
		t.Error("notifications should pass only for their recipient")
	}
	if !match(msg) || match(foreign) {
		t.Error("messages should pass only for the two parties")
	}
	if msg.ID != "a/3" {
		t.Errorf("unexpected message event id %q", msg.ID)
	}
	if Matcher("")(note) {
		t.Error("anonymous matcher should not receive notifications")
	}
}
