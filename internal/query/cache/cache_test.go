package cache

import (
	"testing"
	"time"

	"github.com/vietddude/queryplane/internal/query/keys"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(clock *fakeClock, classes map[string]ClassOptions) *Cache {
	return New(Options{Classes: classes, Now: clock.Now})
}

func TestCache_PutThenGetIsFresh(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(clock, nil)

	c.Put(keys.AnalyticsOverview(), "overview")

	e, ok := c.Get(keys.AnalyticsOverview())
	if !ok {
		t.Fatal("expected entry")
	}
	if e.Value != "overview" {
		t.Errorf("expected stored value, got %v", e.Value)
	}
	if !e.Fresh(clock.Now()) {
		t.Error("expected entry to be fresh right after Put")
	}

	clock.Advance(DefaultStaleTime)
	e, _ = c.Get(keys.AnalyticsOverview())
	if e.Fresh(clock.Now()) {
		t.Error("expected entry to be stale once the stale time elapsed")
	}
}

func TestCache_StructurallyEqualKeysShareSlot(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(clock, nil)

	c.Put(keys.AuditLogsPage(3, keys.AuditFilter{Actor: "a", Action: "b"}), 1)
	c.Put(keys.AuditLogsPage(3, keys.AuditFilter{Action: "b", Actor: "a"}), 2)

	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
	e, _ := c.Get(keys.AuditLogsPage(3, keys.AuditFilter{Actor: "a", Action: "b"}))
	if e.Value != 2 {
		t.Errorf("expected latest value 2, got %v", e.Value)
	}
}

func TestCache_InvalidatePrefix(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(clock, nil)

	page3 := keys.AuditLogsPage(3, keys.AuditFilter{Actor: "x"})
	page4 := keys.AuditLogsPage(4, keys.AuditFilter{})
	other := keys.TeamMembers()
	for _, k := range []keys.Key{page3, page4, other} {
		c.Put(k, "v")
	}

	if n := c.Invalidate(keys.AuditLogs()); n != 2 {
		t.Errorf("expected 2 invalidated entries, got %d", n)
	}

	for _, k := range []keys.Key{page3, page4} {
		e, _ := c.Get(k)
		if e.Fresh(clock.Now()) {
			t.Errorf("expected %s to be stale after invalidation", k)
		}
		if !e.HasValue {
			t.Errorf("invalidation must keep the value of %s", k)
		}
	}
	if e, _ := c.Get(other); !e.Fresh(clock.Now()) {
		t.Error("expected unrelated key to stay fresh")
	}

	c.Put(page3, "v2")
	if e, _ := c.Get(page3); !e.Fresh(clock.Now()) {
		t.Error("expected Put to clear invalidation")
	}
}

func TestCache_SweepRespectsSubscribers(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(clock, nil)

	watched := keys.NotificationsUnread()
	idle := keys.NotificationsList()

	c.Subscribe(watched)
	c.Put(watched, 3)
	c.Put(idle, []string{})

	clock.Advance(DefaultGCTime + time.Second)
	evicted := c.Sweep()

	if len(evicted) != 1 || !evicted[0].Equal(idle) {
		t.Fatalf("expected only the idle entry to be evicted, got %v", evicted)
	}
	if _, ok := c.Get(watched); !ok {
		t.Fatal("subscribed entry must survive the sweep")
	}

	c.Unsubscribe(watched)
	if evicted := c.Sweep(); len(evicted) != 0 {
		t.Errorf("idle clock restarts when the last subscriber leaves, evicted %v", evicted)
	}

	clock.Advance(DefaultGCTime + time.Second)
	if evicted := c.Sweep(); len(evicted) != 1 {
		t.Errorf("expected entry to be evicted after gc time, got %v", evicted)
	}
}

func TestCache_ClassOverrides(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(clock, map[string]ClassOptions{
		keys.ClassNotifications: {StaleTime: 30 * time.Second},
	})

	got := c.OptionsFor(keys.NotificationsUnread())
	if got.StaleTime != 30*time.Second {
		t.Errorf("expected class stale time 30s, got %v", got.StaleTime)
	}
	if got.GCTime != DefaultGCTime {
		t.Errorf("expected default gc time, got %v", got.GCTime)
	}

	c.Put(keys.NotificationsUnread(), 1)
	c.Put(keys.TeamMembers(), 1)
	clock.Advance(time.Minute)

	if e, _ := c.Get(keys.NotificationsUnread()); e.Fresh(clock.Now()) {
		t.Error("expected notifications to be stale after its class stale time")
	}
	if e, _ := c.Get(keys.TeamMembers()); !e.Fresh(clock.Now()) {
		t.Error("expected team members to use the default stale time")
	}
}

func TestCache_RemoveAndStats(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	c := newTestCache(clock, nil)

	c.Put(keys.FilesInFolder("a"), 1)
	c.Put(keys.FileContent("f1"), 2)
	c.Put(keys.Users(), 3)
	c.Invalidate(keys.Users())
	c.Subscribe(keys.TeamMembers())

	s := c.Stats()
	if s.Entries != 4 || s.Fresh != 2 || s.Stale != 1 || s.Subscribers != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}

	if n := c.Remove(keys.Files()); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 entries left, got %d", c.Len())
	}
}
