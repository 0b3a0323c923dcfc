package blacklist

import (
	"path/filepath"
	"testing"
)

func TestBanAndUnban(t *testing.T) {
	dir := t.TempDir()
	l, err := New(filepath.Join(dir, "banned.yaml"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if l.IsBanned("1.2.3.4") {
		t.Fatal("fresh list should have no bans")
	}
	if err := l.Ban("1.2.3.4", "abuse"); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if !l.IsBanned("1.2.3.4") {
		t.Fatal("expected 1.2.3.4 to be banned")
	}
	if err := l.Unban("1.2.3.4"); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if l.IsBanned("1.2.3.4") {
		t.Fatal("expected 1.2.3.4 to be unbanned")
	}
}

func TestLoadPersistedBans(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "banned.yaml")

	l1, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l1.Ban("9.9.9.9", "spam"); err != nil {
		t.Fatalf("Ban: %v", err)
	}

	l2, err := New(path)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	if !l2.IsBanned("9.9.9.9") {
		t.Fatal("expected ban to survive reload from disk")
	}
}

func TestMissingFileStartsEmpty(t *testing.T) {
	l, err := New(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(l.Entries()) != 0 {
		t.Fatal("expected empty list for missing file")
	}
}
