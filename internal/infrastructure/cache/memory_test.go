package cache

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

func TestMemoryCacheSetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	tests := []struct {
		name  string
		key   string
		value interface{}
		ttl   time.Duration
		wait  time.Duration
		want  interface{}
		err   error
	}{
		{
			name:  "string value",
			key:   "detection:latest",
			value: "pass-1",
			ttl:   time.Minute,
			want:  "pass-1",
		},
		{
			name:  "structured value decodes as generic JSON",
			key:   "group:grp-1",
			value: map[string]interface{}{"baseKey": "shirt", "members": 3.0},
			ttl:   time.Minute,
			want:  map[string]interface{}{"baseKey": "shirt", "members": 3.0},
		},
		{
			name:  "numbers come back as float64",
			key:   "pass:count",
			value: 42,
			ttl:   time.Minute,
			want:  float64(42),
		},
		{
			name:  "expired entry reads as a miss",
			key:   "detection:stale",
			value: "pass-0",
			ttl:   time.Millisecond,
			wait:  10 * time.Millisecond,
			err:   domain.ErrCacheMiss,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := cache.Set(ctx, tt.key, tt.value, tt.ttl); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if tt.wait > 0 {
				time.Sleep(tt.wait)
			}

			got, err := cache.Get(ctx, tt.key)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Errorf("Get() error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Get() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMemoryCacheGetMiss(t *testing.T) {
	cache := NewMemoryCache()

	_, err := cache.Get(context.Background(), "detection:missing")
	if !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "detection:latest", "pass-1", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Delete(ctx, "detection:latest"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := cache.Get(ctx, "detection:latest"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after delete error = %v, want %v", err, domain.ErrCacheMiss)
	}

	// Deleting an absent key is a no-op.
	if err := cache.Delete(ctx, "detection:missing"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
}

func TestMemoryCacheExists(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "group:grp-1", "shirt", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cache.Set(ctx, "group:grp-2", "mug", time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "live key", key: "group:grp-1", want: true},
		{name: "expired key", key: "group:grp-2", want: false},
		{name: "missing key", key: "group:grp-3", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cache.Exists(ctx, tt.key)
			if err != nil {
				t.Fatalf("Exists() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestMemoryCacheSizeAndClear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if got := cache.Size(); got != 0 {
		t.Errorf("Size() = %d, want 0 for a fresh cache", got)
	}

	for i := 0; i < 3; i++ {
		key := fmt.Sprintf("group:grp-%d", i)
		if err := cache.Set(ctx, key, i, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	if got := cache.Size(); got != 3 {
		t.Errorf("Size() = %d, want 3", got)
	}

	if err := cache.Delete(ctx, "group:grp-0"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := cache.Size(); got != 2 {
		t.Errorf("Size() after delete = %d, want 2", got)
	}

	cache.Clear()
	if got := cache.Size(); got != 0 {
		t.Errorf("Size() after Clear() = %d, want 0", got)
	}
	if _, err := cache.Get(ctx, "group:grp-1"); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("Get() after Clear() error = %v, want %v", err, domain.ErrCacheMiss)
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("detection:pass-%d", n)
			if err := cache.Set(ctx, key, n, time.Minute); err != nil {
				t.Errorf("Set() error = %v", err)
				return
			}
			if _, err := cache.Get(ctx, key); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := cache.Size(); got != 10 {
		t.Errorf("Size() = %d, want 10", got)
	}
}
