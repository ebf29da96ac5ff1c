package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestLimiter(fr *fakeRedis) *Limiter {
	return New(NewRedis(fr), zap.NewNop(), WithClock(fr.clock))
}

func TestLimit_ThreePerMinuteScenario(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	fr := newFakeRedis(start)
	l := newTestLimiter(fr)
	ctx := context.Background()

	for i, wantRemaining := range []int{2, 1, 0} {
		res := l.Limit(ctx, "u1", 3, time.Minute)
		if !res.Allowed || res.Remaining != wantRemaining {
			t.Fatalf("call %d: allowed=%v remaining=%d", i+1, res.Allowed, res.Remaining)
		}
		if res.ResetAt != start.Add(time.Minute) {
			t.Fatalf("call %d: resetAt=%v", i+1, res.ResetAt)
		}
	}

	res := l.Limit(ctx, "u1", 3, time.Minute)
	if res.Allowed || res.Remaining != 0 {
		t.Fatalf("call 4: allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
	if res.ResetAtMillis() != start.Add(time.Minute).UnixMilli() {
		t.Fatalf("reset ms: %d", res.ResetAtMillis())
	}
	if got := res.RetryAfter(start); got != time.Minute {
		t.Fatalf("retry after: %v", got)
	}

	fr.advance(61 * time.Second)
	res = l.Limit(ctx, "u1", 3, time.Minute)
	if !res.Allowed || res.Remaining != 2 {
		t.Fatalf("next window: allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
}

func TestLimit_IdentifiersAreIndependent(t *testing.T) {
	fr := newFakeRedis(time.Unix(1_700_000_000, 0))
	l := newTestLimiter(fr)
	ctx := context.Background()

	_ = l.Limit(ctx, "a", 1, time.Minute)
	if res := l.Limit(ctx, "a", 1, time.Minute); res.Allowed {
		t.Fatalf("a should be limited")
	}
	if res := l.Limit(ctx, "b", 1, time.Minute); !res.Allowed {
		t.Fatalf("b should be allowed")
	}
	if _, ok := fr.entries["rate_limit:a"]; !ok {
		t.Fatalf("key must be prefixed, got %v", fr.entries)
	}
}

func TestLimit_FailsOpenAndLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	now := time.Unix(1_700_000_000, 0)
	fr := newFakeRedis(now)
	fr.incrErr = errors.New("dial tcp: connection refused")
	l := New(NewRedis(fr), zap.New(core), WithClock(fr.clock))

	res := l.Limit(context.Background(), "u1", 10, time.Minute)
	if !res.Allowed || res.Remaining != 10 || !res.ResetAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("fail-open result: %+v", res)
	}
	if logs.Len() != 1 {
		t.Fatalf("want one warning, got %d", logs.Len())
	}
}

func TestLimit_DisabledForNonPositiveArgs(t *testing.T) {
	fr := newFakeRedis(time.Now())
	l := newTestLimiter(fr)

	if res := l.Limit(context.Background(), "u1", 0, time.Minute); !res.Allowed {
		t.Fatalf("zero limit must allow")
	}
	if res := l.Limit(context.Background(), "u1", 5, 0); !res.Allowed || res.Remaining != 5 {
		t.Fatalf("zero window must allow: %+v", res)
	}
	if len(fr.entries) != 0 {
		t.Fatalf("store must not be touched")
	}
}

func TestLimit_NilStoreAllows(t *testing.T) {
	l := New(nil, nil)
	if res := l.Limit(context.Background(), "u1", 1, time.Minute); !res.Allowed {
		t.Fatalf("nil store must allow")
	}
}

func TestLimitPreset(t *testing.T) {
	fr := newFakeRedis(time.Unix(1_700_000_000, 0))
	l := newTestLimiter(fr)

	var res Result
	for i := 0; i < Strict.Limit+1; i++ {
		res = l.LimitPreset(context.Background(), "login:u1", Strict)
	}
	if res.Allowed {
		t.Fatalf("strict preset must block call %d", Strict.Limit+1)
	}
}

func TestPresetByName(t *testing.T) {
	cases := map[string]Preset{
		"strict":    Strict,
		"Standard":  Standard,
		" lenient ": Lenient,
		"INTERNAL":  Internal,
	}
	for name, want := range cases {
		got, err := PresetByName(name)
		if err != nil || got != want {
			t.Fatalf("%q: got=%+v err=%v", name, got, err)
		}
	}
	if _, err := PresetByName("bogus"); err == nil {
		t.Fatalf("want error on unknown preset")
	}
	if Strict.Limit != 3 || Strict.Window != time.Hour ||
		Standard.Limit != 10 || Standard.Window != time.Minute ||
		Lenient.Limit != 30 || Internal.Limit != 100 {
		t.Fatalf("preset values drifted")
	}
}
