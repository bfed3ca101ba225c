package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestServeHealth(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()
	_ = lis.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hs, err := Serve(ctx, slog.New(slog.NewTextHandler(io.Discard, nil)), addr, "booking")
	if err != nil {
		t.Fatalf("serve: %v", err)
	}

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer checkCancel()
	ok, err := CheckHealth(checkCtx, addr, "booking")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !ok {
		t.Fatal("expected SERVING")
	}

	hs.SetServing(false)
	ok, err = CheckHealth(checkCtx, addr, "booking")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ok {
		t.Fatal("expected NOT_SERVING")
	}
}
