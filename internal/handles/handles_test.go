package handles

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestMintAndResolve(t *testing.T) {
	r := New(Config{BaseURL: "http://127.0.0.1:8080/"})

	h := r.Mint([]byte("jpeg"), "image/jpeg")
	if !strings.HasPrefix(h, "http://127.0.0.1:8080/blob/") {
		t.Fatalf("Mint() = %q, want base URL prefix", h)
	}
	if !IsHandle(h) {
		t.Errorf("IsHandle(%q) = false", h)
	}

	blob, ok := r.Resolve(h)
	if !ok {
		t.Fatal("Resolve() failed for a fresh handle")
	}
	if string(blob.Payload) != "jpeg" || blob.ContentType != "image/jpeg" {
		t.Errorf("Resolve() = %+v", blob)
	}

	// Bare token resolves too
	if _, ok := r.Resolve(Token(h)); !ok {
		t.Error("Resolve(token) failed")
	}
}

func TestMintIsFreshEveryCall(t *testing.T) {
	r := New(Config{})
	a := r.Mint([]byte("same"), "image/png")
	b := r.Mint([]byte("same"), "image/png")
	if a == b {
		t.Errorf("Mint() returned the same handle twice: %s", a)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestRevoke(t *testing.T) {
	r := New(Config{})
	h := r.Mint([]byte("x"), "image/png")

	if !r.Revoke(h) {
		t.Error("Revoke() = false for a live handle")
	}
	if r.Revoke(h) {
		t.Error("second Revoke() = true")
	}
	if _, ok := r.Resolve(h); ok {
		t.Error("revoked handle still resolves")
	}
}

func TestTTLExpiry(t *testing.T) {
	r := New(Config{TTL: time.Minute})
	now := time.Now()
	r.now = func() time.Time { return now }

	old := r.Mint([]byte("old"), "image/png")
	now = now.Add(30 * time.Second)
	fresh := r.Mint([]byte("fresh"), "image/png")
	now = now.Add(45 * time.Second)

	if _, ok := r.Resolve(old); ok {
		t.Error("expired handle resolved")
	}
	if _, ok := r.Resolve(fresh); !ok {
		t.Error("unexpired handle did not resolve")
	}

	now = now.Add(time.Hour)
	if removed := r.Sweep(); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d after sweep", r.Len())
	}
}

func TestSweepWithoutTTL(t *testing.T) {
	r := New(Config{})
	r.Mint([]byte("x"), "image/png")
	if removed := r.Sweep(); removed != 0 {
		t.Errorf("Sweep() removed %d without a TTL", removed)
	}
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	r := New(Config{MaxEntries: 2})
	now := time.Now()
	r.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	first := r.Mint([]byte("1"), "image/png")
	second := r.Mint([]byte("2"), "image/png")
	third := r.Mint([]byte("3"), "image/png")

	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if _, ok := r.Resolve(first); ok {
		t.Error("oldest handle was not evicted")
	}
	for _, h := range []string{second, third} {
		if _, ok := r.Resolve(h); !ok {
			t.Errorf("handle %s was evicted", h)
		}
	}
}

func TestShed(t *testing.T) {
	tests := []struct {
		name      string
		minted    int
		fraction  float64
		wantShed  int
		wantAlive int
	}{
		{"half", 4, 0.5, 2, 2},
		{"rounds up", 3, 0.1, 1, 2},
		{"all", 3, 1, 3, 0},
		{"clamped above one", 2, 5, 2, 0},
		{"zero fraction", 3, 0, 0, 3},
		{"empty registry", 0, 0.5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(Config{})
			now := time.Now()
			r.now = func() time.Time { now = now.Add(time.Millisecond); return now }

			minted := make([]string, tt.minted)
			for i := range minted {
				minted[i] = r.Mint([]byte{byte(i)}, "image/png")
			}

			if got := r.Shed(tt.fraction); got != tt.wantShed {
				t.Errorf("Shed(%v) = %d, want %d", tt.fraction, got, tt.wantShed)
			}
			if r.Len() != tt.wantAlive {
				t.Errorf("Len() = %d, want %d", r.Len(), tt.wantAlive)
			}
			// Survivors are always the newest handles.
			for i, h := range minted {
				_, ok := r.Resolve(h)
				if want := i >= tt.wantShed; ok != want {
					t.Errorf("handle %d resolvable = %v, want %v", i, ok, want)
				}
			}
		})
	}
}

func TestToken(t *testing.T) {
	tests := map[string]string{
		"http://h/blob/abc":      "abc",
		"/blob/abc":              "abc",
		"abc":                    "abc",
		"http://h/x/blob/nested": "nested",
	}
	for in, want := range tests {
		if got := Token(in); got != want {
			t.Errorf("Token(%q) = %q, want %q", in, got, want)
		}
	}
	if IsHandle("https://cdn.example.com/a.png") {
		t.Error("IsHandle() = true for an origin URL")
	}
	if IsHandle("http://h/blob/not-a-uuid") {
		t.Error("IsHandle() = true for a non-uuid token")
	}
}

func TestConcurrentMintResolve(t *testing.T) {
	r := New(Config{MaxEntries: 50})
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h := r.Mint([]byte("p"), "image/png")
				r.Resolve(h)
				if j%3 == 0 {
					r.Revoke(h)
				}
			}
		}()
	}
	wg.Wait()
	if r.Len() > 50 {
		t.Errorf("Len() = %d exceeds MaxEntries", r.Len())
	}
}
