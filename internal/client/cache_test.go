package client

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheReturnsSameConnectionForSameKey(t *testing.T) {
	cache := NewCache()
	key := Key{Host: "deploy@prod", Endpoint: "unix:///var/run/docker.sock"}

	var calls int32
	construct := func() (*DockerClient, error) {
		atomic.AddInt32(&calls, 1)
		return &DockerClient{key: key}, nil
	}

	c1, err := cache.getOrCreate(key, construct)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := cache.getOrCreate(key, construct)
	if err != nil {
		t.Fatal(err)
	}
	if c1 != c2 {
		t.Error("same key produced distinct connections")
	}
	if calls != 1 {
		t.Errorf("constructor ran %d times, want 1", calls)
	}
}

func TestCacheDistinguishesHostAndEndpoint(t *testing.T) {
	cache := NewCache()
	keys := []Key{
		{Host: "a", Endpoint: "unix:///var/run/docker.sock"},
		{Host: "b", Endpoint: "unix:///var/run/docker.sock"},
		{Host: "a", Endpoint: "tcp://10.0.0.5:2375"},
	}

	seen := make(map[*DockerClient]bool)
	for _, key := range keys {
		k := key
		c, err := cache.getOrCreate(k, func() (*DockerClient, error) {
			return &DockerClient{key: k}, nil
		})
		if err != nil {
			t.Fatal(err)
		}
		seen[c] = true
	}
	if len(seen) != len(keys) {
		t.Errorf("%d distinct keys produced %d connections", len(keys), len(seen))
	}
	if cache.Len() != len(keys) {
		t.Errorf("cache holds %d connections, want %d", cache.Len(), len(keys))
	}
}

func TestCacheDoesNotCacheFailedConstruction(t *testing.T) {
	cache := NewCache()
	key := Key{Host: "h", Endpoint: "e"}

	boom := errors.New("dial failed")
	if _, err := cache.getOrCreate(key, func() (*DockerClient, error) {
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if cache.Len() != 0 {
		t.Fatal("failed construction left an entry behind")
	}

	c, err := cache.getOrCreate(key, func() (*DockerClient, error) {
		return &DockerClient{key: key}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("retry after failure returned nil")
	}
}

func TestCacheConcurrentLookupsShareOneConstruction(t *testing.T) {
	cache := NewCache()
	key := Key{Host: "h", Endpoint: "e"}

	var calls int32
	construct := func() (*DockerClient, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return &DockerClient{key: key}, nil
	}

	const n = 16
	results := make([]*DockerClient, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			c, err := cache.getOrCreate(key, construct)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = c
		}(i)
	}
	close(start)
	wg.Wait()

	if calls != 1 {
		t.Errorf("constructor ran %d times, want 1", calls)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent lookups returned distinct connections")
		}
	}
}

func TestCacheInvalidateClosesAndRemoves(t *testing.T) {
	cache := NewCache()
	key := Key{Host: "h", Endpoint: "e"}

	var released bool
	if _, err := cache.getOrCreate(key, func() (*DockerClient, error) {
		return &DockerClient{key: key, releaseTunnel: func() error {
			released = true
			return nil
		}}, nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := cache.Invalidate(key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if !released {
		t.Error("Invalidate did not close the connection")
	}
	if cache.Len() != 0 {
		t.Error("Invalidate left the entry behind")
	}
	if err := cache.Invalidate(key); err != nil {
		t.Errorf("second Invalidate: %v", err)
	}
}
