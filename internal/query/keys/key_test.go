package keys

import "testing"

func TestKey_StructuralEquality(t *testing.T) {
	a := AuditLogsPage(3, AuditFilter{Actor: "alice", Action: "login"})
	b := AuditLogsPage(3, AuditFilter{Action: "login", Actor: "alice"})

	if !a.Equal(b) {
		t.Fatalf("expected %s to equal %s", a, b)
	}
	if a.ID() != b.ID() {
		t.Errorf("expected same slot id, got %s and %s", a.ID(), b.ID())
	}

	c := AuditLogsPage(4, AuditFilter{Actor: "alice", Action: "login"})
	if a.Equal(c) {
		t.Errorf("expected page 3 and page 4 keys to differ")
	}
}

func TestKey_MapSegmentsIgnoreOrder(t *testing.T) {
	a := Must("reports", map[string]any{"from": "2024-01-01", "to": "2024-02-01"})
	b := Must("reports", map[string]any{"to": "2024-02-01", "from": "2024-01-01"})

	if !a.Equal(b) {
		t.Errorf("expected map segments to compare structurally")
	}
}

func TestKey_HasPrefix(t *testing.T) {
	tests := []struct {
		name   string
		key    Key
		prefix Key
		want   bool
	}{
		{"family root", AuditLogsPage(3, AuditFilter{Actor: "x"}), AuditLogs(), true},
		{"self", AnalyticsOverview(), AnalyticsOverview(), true},
		{"sibling", AnalyticsOverview(), AnalyticsRevenue("30d"), false},
		{"longer prefix", Analytics(), AnalyticsOverview(), false},
		{"other family", TeamMembers(), Users(), false},
		{"empty prefix", FileContent("f1"), Key{}, true},
		{"detail under users", User("u1"), Users(), true},
	}

	for _, tt := range tests {
		if got := tt.key.HasPrefix(tt.prefix); got != tt.want {
			t.Errorf("%s: HasPrefix(%s, %s) = %v, want %v", tt.name, tt.key, tt.prefix, got, tt.want)
		}
	}
}

func TestKey_Class(t *testing.T) {
	if got := NotificationsUnread().Class(); got != ClassNotifications {
		t.Errorf("expected class %q, got %q", ClassNotifications, got)
	}
	if got := Must(42).Class(); got != "" {
		t.Errorf("expected empty class for numeric root, got %q", got)
	}
}

func TestKey_Append(t *testing.T) {
	k, err := Files().Append("folder", "reports")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !k.Equal(FilesInFolder("reports")) {
		t.Errorf("expected appended key to equal builder key, got %s", k)
	}
	if Files().Len() != 1 {
		t.Errorf("Append must not modify the receiver")
	}
}

func TestKey_RejectsUnhashable(t *testing.T) {
	if _, err := New("bad", make(chan int)); err == nil {
		t.Error("expected error for channel segment")
	}
}

func TestKey_Strings(t *testing.T) {
	got := AuditLogsPage(2, AuditFilter{Actor: "bob"}).Strings()
	want := []string{"audit-logs", "2", `{"actor":"bob"}`}
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
