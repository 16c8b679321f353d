package tracing

import (
	"context"
	"testing"
)

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, errInit := Init("promotion-service", "  ")
	if errInit != nil {
		t.Fatalf("init: %v", errInit)
	}
	if errShutdown := shutdown(context.Background()); errShutdown != nil {
		t.Fatalf("shutdown: %v", errShutdown)
	}
}

func TestInitWithEndpoint(t *testing.T) {
	shutdown, errInit := Init("promotion-service", "http://127.0.0.1:1/api/traces")
	if errInit != nil {
		t.Fatalf("init: %v", errInit)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
