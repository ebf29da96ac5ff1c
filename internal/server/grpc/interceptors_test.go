package grpcserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()

	ctx = peer.NewContext(ctx, &peer.Peer{Addr: fakeAddr{}})

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	info := &grpc.UnaryServerInfo{FullMethod: "/noodle.Ops/Method"}

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/noodle.Ops/Panic"}

	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(ctx, "req", info, panicH)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := RecoverUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/noodle.Ops/Ok"}

	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestLoggingUnary_DurationFieldDoesNotBlock(t *testing.T) {
	t.Parallel()

	log := zaptest.NewLogger(t)
	ic := LoggingUnary(log)

	ctx := context.Background()
	info := &grpc.UnaryServerInfo{FullMethod: "/noodle.Ops/Sleep"}
	h := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "done", nil
	}

	start := time.Now()
	resp, err := ic(ctx, "req", info, h)
	if err != nil || resp.(string) != "done" {
		t.Fatalf("unexpected result: %v, %v", resp, err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatalf("duration should reflect handler time")
	}
}

func TestLoggingUnary_HealthChecksAtDebug(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ic := LoggingUnary(zap.New(core))
	h := func(ctx context.Context, req any) (any, error) { return nil, nil }

	_, _ = ic(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: healthPrefix + "Check"}, h)
	_, _ = ic(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/noodle.Ops/Method"}, h)
	_, _ = ic(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: healthPrefix + "Check"},
		func(ctx context.Context, req any) (any, error) { return nil, status.Error(codes.Unavailable, "down") })

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	want := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.InfoLevel}
	for i, e := range entries {
		if e.Level != want[i] {
			t.Fatalf("entry %d: want %v, got %v", i, want[i], e.Level)
		}
	}
}

func TestLoggingUnary_MetadataOnly(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ic := LoggingUnary(zap.New(core))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})

	const secret = "s3cr3t-payload"
	h := func(ctx context.Context, req any) (any, error) { return secret + "-resp", nil }
	_, _ = ic(ctx, secret+"-req", &grpc.UnaryServerInfo{FullMethod: "/noodle.Ops/Method"}, h)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	for _, k := range []string{"method", "code", "dur", "peer"} {
		if _, ok := fields[k]; !ok {
			t.Fatalf("missing field %q in %v", k, fields)
		}
	}
	if len(fields) != 4 {
		t.Fatalf("unexpected fields logged: %v", fields)
	}
	for k, v := range fields {
		if strings.Contains(fmt.Sprint(v), secret) {
			t.Fatalf("field %q leaks payload: %v", k, v)
		}
	}
}
