package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

/************ fake redis ************/
type fakeEntry struct {
	count     int64
	expiresAt time.Time // zero: no expiry
}

type fakeRedis struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]*fakeEntry

	incrErr   error
	expireErr error
	pttlErr   error
	dropTTL   bool // simulate a lost EXPIRE

	expireCalls int
}

func newFakeRedis(now time.Time) *fakeRedis {
	return &fakeRedis{now: now, entries: map[string]*fakeEntry{}}
}

func (f *fakeRedis) advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func (f *fakeRedis) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeRedis) live(key string) *fakeEntry {
	e, ok := f.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && !f.now.Before(e.expiresAt) {
		delete(f.entries, key)
		return nil
	}
	return e
}

func (f *fakeRedis) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	e := f.live(key)
	if e == nil {
		e = &fakeEntry{}
		f.entries[key] = e
	}
	e.count++
	return redis.NewIntResult(e.count, nil)
}

func (f *fakeRedis) Expire(_ context.Context, key string, exp time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	e := f.live(key)
	if e == nil {
		return redis.NewBoolResult(false, nil)
	}
	if !f.dropTTL {
		e.expiresAt = f.now.Add(exp)
	}
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) PTTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pttlErr != nil {
		return redis.NewDurationResult(0, f.pttlErr)
	}
	e := f.live(key)
	switch {
	case e == nil:
		return redis.NewDurationResult(-2, nil)
	case e.expiresAt.IsZero():
		return redis.NewDurationResult(-1, nil)
	default:
		return redis.NewDurationResult(e.expiresAt.Sub(f.now), nil)
	}
}

func TestRedis_Hit_FirstSetsExpiry(t *testing.T) {
	fr := newFakeRedis(time.Unix(1_700_000_000, 0))
	s := NewRedis(fr)

	count, ttl, err := s.Hit(context.Background(), "rate_limit:u1", time.Minute)
	if err != nil || count != 1 || ttl != time.Minute {
		t.Fatalf("first hit: count=%d ttl=%v err=%v", count, ttl, err)
	}
	if fr.expireCalls != 1 {
		t.Fatalf("expire calls: %d", fr.expireCalls)
	}

	fr.advance(20 * time.Second)
	count, ttl, err = s.Hit(context.Background(), "rate_limit:u1", time.Minute)
	if err != nil || count != 2 || ttl != 40*time.Second {
		t.Fatalf("second hit: count=%d ttl=%v err=%v", count, ttl, err)
	}
	if fr.expireCalls != 1 {
		t.Fatalf("expiry must only be set on the first hit, calls=%d", fr.expireCalls)
	}
}

func TestRedis_Hit_RepairsMissingExpiry(t *testing.T) {
	fr := newFakeRedis(time.Unix(1_700_000_000, 0))
	fr.dropTTL = true
	s := NewRedis(fr)

	if _, _, err := s.Hit(context.Background(), "k", time.Minute); err != nil {
		t.Fatalf("hit: %v", err)
	}
	fr.dropTTL = false
	count, ttl, err := s.Hit(context.Background(), "k", time.Minute)
	if err != nil || count != 2 || ttl != time.Minute {
		t.Fatalf("repair: count=%d ttl=%v err=%v", count, ttl, err)
	}
	if fr.expireCalls != 2 {
		t.Fatalf("want expiry re-issued, calls=%d", fr.expireCalls)
	}
}

func TestRedis_Hit_ErrorsPropagate(t *testing.T) {
	ctx := context.Background()

	fr := newFakeRedis(time.Now())
	fr.incrErr = errors.New("conn refused")
	if _, _, err := NewRedis(fr).Hit(ctx, "k", time.Minute); err == nil {
		t.Fatalf("want incr error")
	}

	fr = newFakeRedis(time.Now())
	fr.expireErr = errors.New("expire failed")
	if _, _, err := NewRedis(fr).Hit(ctx, "k", time.Minute); err == nil {
		t.Fatalf("want expire error")
	}

	fr = newFakeRedis(time.Now())
	s := NewRedis(fr)
	_, _, _ = s.Hit(ctx, "k", time.Minute)
	fr.pttlErr = errors.New("pttl failed")
	if _, _, err := s.Hit(ctx, "k", time.Minute); err == nil {
		t.Fatalf("want pttl error")
	}
}
