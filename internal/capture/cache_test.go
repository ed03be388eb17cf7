package capture

import (
	"errors"
	"testing"
)

type fakeSession struct {
	closed bool
}

func (s *fakeSession) Capture() (uintptr, uint32, uint32, func(), error) {
	return 1, 1920, 1080, func() {}, nil
}
func (s *fakeSession) Close() { s.closed = true }

type fakeProvider struct {
	opened int
	fail   bool
}

func (p *fakeProvider) ResolveActiveMonitor() (MonitorInfo, error) {
	return MonitorInfo{Handle: 1}, nil
}

func (p *fakeProvider) OpenSession(MonitorInfo) (Session, error) {
	if p.fail {
		return nil, errors.New("negotiation failed")
	}
	p.opened++
	return &fakeSession{}, nil
}

func TestCache_ReusesSessionPerMonitor(t *testing.T) {
	cache := NewCache()
	provider := &fakeProvider{}
	mon := MonitorInfo{Handle: 7}

	first, err := cache.Session(provider, mon)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	second, err := cache.Session(provider, mon)
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if first != second {
		t.Error("same monitor must reuse the cached session")
	}
	if provider.opened != 1 {
		t.Errorf("provider opened %d sessions, want 1", provider.opened)
	}

	other := MonitorInfo{Handle: 8}
	if _, err := cache.Session(provider, other); err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if provider.opened != 2 {
		t.Errorf("second monitor must open its own session, opened = %d", provider.opened)
	}
}

func TestCache_InvalidateClosesAll(t *testing.T) {
	cache := NewCache()
	provider := &fakeProvider{}

	s1, _ := cache.Session(provider, MonitorInfo{Handle: 1})
	s2, _ := cache.Session(provider, MonitorInfo{Handle: 2})

	cache.Invalidate()
	if !s1.(*fakeSession).closed || !s2.(*fakeSession).closed {
		t.Error("invalidation must close every cached session")
	}

	// A fresh request renegotiates.
	cache.Session(provider, MonitorInfo{Handle: 1})
	if provider.opened != 3 {
		t.Errorf("post-invalidate request must reopen, opened = %d", provider.opened)
	}
}

func TestCache_OpenFailureNotCached(t *testing.T) {
	cache := NewCache()
	provider := &fakeProvider{fail: true}

	if _, err := cache.Session(provider, MonitorInfo{Handle: 1}); err == nil {
		t.Fatal("open failure must propagate")
	}
	provider.fail = false
	if _, err := cache.Session(provider, MonitorInfo{Handle: 1}); err != nil {
		t.Fatalf("retry after failure must succeed: %v", err)
	}
	if provider.opened != 1 {
		t.Errorf("opened = %d, want 1", provider.opened)
	}
}

func TestMonitor_RectContains(t *testing.T) {
	r := Rect{X: -1920, Y: 0, Width: 1920, Height: 1080}

	tests := []struct {
		x, y int32
		want bool
	}{
		{-1920, 0, true},
		{-1, 1079, true},
		{0, 0, false},
		{-1920, 1080, false},
		{-2000, 500, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.x, tt.y); got != tt.want {
			t.Errorf("Contains(%d,%d) = %v, want %v", tt.x, tt.y, got, tt.want)
		}
	}
}
