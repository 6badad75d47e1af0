package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/clarencelabs/kingfisher/internal/cache"
	"github.com/clarencelabs/kingfisher/internal/lesson"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	addr := fmt.Sprintf("%s:%s", host, port.Port())

	c, err := cache.NewRedis[[]lesson.ImageRecord](ctx, addr, "", 0, "images", time.Minute)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}

	want := []lesson.ImageRecord{{URL: "https://example.org/a.jpg", Provider: "unsplash"}}
	c.Set(ctx, "uni knot", want)

	got, ok := c.Get(ctx, "uni knot")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if len(got) != 1 || got[0].URL != want[0].URL || got[0].Provider != "unsplash" {
		t.Fatalf("unexpected cached value: %+v", got)
	}

	if size := c.Size(ctx); size != 1 {
		t.Fatalf("expected size 1, got %d", size)
	}

	c.Clear(ctx)
	if _, ok := c.Get(ctx, "uni knot"); ok {
		t.Fatal("expected entry gone after Clear")
	}
}

func TestRedisCacheExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	defer func() { _ = redisC.Terminate(ctx) }()

	host, _ := redisC.Host(ctx)
	port, _ := redisC.MappedPort(ctx, "6379")
	addr := fmt.Sprintf("%s:%s", host, port.Port())

	c, err := cache.NewRedis[string](ctx, addr, "", 0, "search", time.Second)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}

	c.Set(ctx, "q", "result")
	time.Sleep(1500 * time.Millisecond)
	if _, ok := c.Get(ctx, "q"); ok {
		t.Fatal("expected entry expired")
	}
}
