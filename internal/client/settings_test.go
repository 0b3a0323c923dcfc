package client

import "testing"

func TestApplyFromServerUpdatesWhenNotOverriding(t *testing.T) {
	s := NewSettingsStore(Settings{CenterFrequency: 1000}, false)
	applied := s.ApplyFromServer(Settings{CenterFrequency: 2000})
	if !applied {
		t.Fatal("expected apply to succeed when override is false")
	}
	if s.Get().CenterFrequency != 2000 {
		t.Fatalf("expected updated frequency, got %d", s.Get().CenterFrequency)
	}
}

func TestApplyFromServerIgnoredWhenOverriding(t *testing.T) {
	s := NewSettingsStore(Settings{CenterFrequency: 1000}, true)
	applied := s.ApplyFromServer(Settings{CenterFrequency: 2000})
	if applied {
		t.Fatal("expected apply to be rejected when override is true")
	}
	if s.Get().CenterFrequency != 1000 {
		t.Fatalf("expected original frequency preserved, got %d", s.Get().CenterFrequency)
	}
}
