package toolcache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quibble-ai/quibble/internal/mcpclient"
)

func startRedis(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
	}
	rc, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	port, err := rc.MappedPort(ctx, "6379")
	if err != nil {
		_ = rc.Terminate(ctx)
		t.Fatalf("failed to get mapped port: %v", err)
	}
	host, err := rc.Host(ctx)
	if err != nil {
		_ = rc.Terminate(ctx)
		t.Fatalf("failed to get host: %v", err)
	}
	return rc, fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisRoundtrip(t *testing.T) {
	if os.Getenv("QUIBBLE_INTEGRATION") == "" {
		t.Skip("set QUIBBLE_INTEGRATION=1 to run container-backed tests")
	}
	ctx := context.Background()
	rc, addr := startRedis(t, ctx)
	defer func() { _ = rc.Terminate(ctx) }()

	client, err := Conn(ctx, addr, "", 0, 5*time.Second)
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	cache := NewRedis(client, time.Minute, nil)

	if _, ok := cache.Get(ctx, "https://velo.example/api/mcp"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	tools := []mcpclient.Tool{{Name: "search_shop_catalog", Description: "search"}}
	cache.Put(ctx, "https://velo.example/api/mcp", tools)
	got, ok := cache.Get(ctx, "https://velo.example/api/mcp")
	if !ok || len(got) != 1 || got[0].Name != "search_shop_catalog" {
		t.Fatalf("roundtrip failed: %+v (ok=%v)", got, ok)
	}
}
