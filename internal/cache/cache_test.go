package cache

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("SetGetDelete", func(t *testing.T) {
		c := NewLRUCache(10)

		if err := c.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		got, err := c.Get(ctx, "k1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "v1" {
			t.Errorf("got %q, want v1", got)
		}

		if err := c.Delete(ctx, "k1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		got, err = c.Get(ctx, "k1")
		if err != nil || got != nil {
			t.Errorf("after delete: got %q, %v; want nil, nil", got, err)
		}
	})

	t.Run("MissIsNilNil", func(t *testing.T) {
		c := NewLRUCache(10)
		got, err := c.Get(ctx, "missing")
		if err != nil || got != nil {
			t.Errorf("got %q, %v; want nil, nil", got, err)
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		c := NewLRUCache(10)
		if err := c.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		time.Sleep(20 * time.Millisecond)
		got, err := c.Get(ctx, "k1")
		if err != nil || got != nil {
			t.Errorf("expired entry still served: %q, %v", got, err)
		}
	})

	t.Run("EvictsLeastRecentlyUsed", func(t *testing.T) {
		c := NewLRUCache(3)
		for _, k := range []string{"a", "b", "c"} {
			if err := c.Set(ctx, k, []byte(k), time.Minute); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}

		// Touch "a" so "b" becomes the eviction candidate.
		if _, err := c.Get(ctx, "a"); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if err := c.Set(ctx, "d", []byte("d"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		if got, _ := c.Get(ctx, "b"); got != nil {
			t.Error("least recently used entry survived eviction")
		}
		for _, k := range []string{"a", "c", "d"} {
			if got, _ := c.Get(ctx, k); got == nil {
				t.Errorf("entry %q evicted unexpectedly", k)
			}
		}

		size, capacity := c.Stats()
		if size != 3 || capacity != 3 {
			t.Errorf("stats = %d/%d, want 3/3", size, capacity)
		}
	})

	t.Run("UpdateDoesNotGrow", func(t *testing.T) {
		c := NewLRUCache(3)
		for i := 0; i < 5; i++ {
			if err := c.Set(ctx, "same", []byte{byte(i)}, time.Minute); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}
		size, _ := c.Stats()
		if size != 1 {
			t.Errorf("size = %d, want 1 after repeated updates", size)
		}
	})

	t.Run("ProfileRoundTrip", func(t *testing.T) {
		c := NewLRUCache(10)
		p := domain.NewUserFraudProfile("USER_000001")
		p.Login.Devices.Add("Mobile")
		p.SampleCount = 3

		if err := c.SetProfile(ctx, p, time.Minute); err != nil {
			t.Fatalf("SetProfile failed: %v", err)
		}

		got, err := c.GetProfile(ctx, "USER_000001")
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if got == nil || got.SampleCount != 3 || !got.Login.Devices.Seen("Mobile") {
			t.Errorf("profile round trip lost data: %+v", got)
		}

		missing, err := c.GetProfile(ctx, "USER_999999")
		if err != nil || missing != nil {
			t.Errorf("missing profile: got %+v, %v; want nil, nil", missing, err)
		}
	})

	t.Run("CounterWindow", func(t *testing.T) {
		c := NewLRUCache(10)

		for want := int64(1); want <= 3; want++ {
			n, err := c.IncrementCounter(ctx, "velocity:u:login:24h", time.Minute)
			if err != nil {
				t.Fatalf("IncrementCounter failed: %v", err)
			}
			if n != want {
				t.Errorf("counter = %d, want %d", n, want)
			}
		}

		// A fresh window restarts from 1 once the old one expires.
		if _, err := c.IncrementCounter(ctx, "short", 5*time.Millisecond); err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
		n, err := c.IncrementCounter(ctx, "short", time.Minute)
		if err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
		if n != 1 {
			t.Errorf("counter after window expiry = %d, want 1", n)
		}
	})
}

func TestCacheFactory(t *testing.T) {
	c, err := New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if _, ok := c.(*LRUCache); !ok {
		t.Errorf("memory config produced %T, want *LRUCache", c)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
