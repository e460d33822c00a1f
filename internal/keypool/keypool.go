// Package keypool implements the per-provider credential pool described in
// spec §4.3: an ordered set of keys with round-robin acquisition and
// per-key cooldown after a rate-limit event.
//
// A Pool's counters are guarded by a mutex with no I/O inside the critical
// section, the same discipline the teacher's Dispatcher achieves with a
// single-owner goroutine instead — Pool is shared across many concurrent
// dispatcher calls, so it needs the lock.
package keypool

import (
	"strings"
	"sync"
	"time"
)

// Key is one credential slot in a Pool.
type Key struct {
	Credential      string
	Index           int
	UsageCount      int64
	LastUsedNs      int64
	InCooldown      bool
	CooldownUntilNs int64
	LastRateLimitNs int64
}

// Pool is an ordered, round-robin set of credentials for one provider.
// A Pool of size 1 holding a single synthetic empty credential represents
// a key-less provider that never rate-limits.
type Pool struct {
	mu              sync.Mutex
	keys            []Key
	currentIndex    int
	resetWindow     time.Duration
	rotationEnabled bool // mirrors KEY_ROTATION_ENABLED; false makes MarkRateLimited a no-op
	neverRateLimits bool // true only for the synthetic key-less pool
	nowFn           func() time.Time
}

// New builds a Pool from a comma-separated credential string as described
// in spec §4.3: empty/whitespace entries are dropped; an empty result means
// the provider is unavailable (New returns an empty Pool, Size()==0); one
// surviving entry is a non-rotating single-key pool; more than one enables
// rotation. rotationEnabled mirrors KEY_ROTATION_ENABLED: when false,
// rate-limit events still cause cross-provider/key failover in the
// Dispatcher but no longer cool the key down here.
func New(rawCredentials string, resetWindow time.Duration, rotationEnabled bool) *Pool {
	creds := splitCredentials(rawCredentials)
	return newPool(creds, resetWindow, rotationEnabled, false)
}

// NewKeyless builds the size-1 pool with a synthetic empty credential used
// by providers that don't require an API key (sina, eastmoney). The pool
// never rate-limits: MarkRateLimited is permanently a no-op for it, so
// Acquire always succeeds regardless of how many times the caller reports
// a rate-limit from that upstream.
func NewKeyless() *Pool {
	return newPool([]string{""}, 0, false, true)
}

func newPool(creds []string, resetWindow time.Duration, rotationEnabled, neverRateLimits bool) *Pool {
	keys := make([]Key, len(creds))
	for i, c := range creds {
		keys[i] = Key{Credential: c, Index: i}
	}
	return &Pool{
		keys:            keys,
		resetWindow:     resetWindow,
		rotationEnabled: rotationEnabled,
		neverRateLimits: neverRateLimits,
		nowFn:           time.Now,
	}
}

func splitCredentials(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Size returns the number of key slots in the pool. Zero means the
// provider is unavailable.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// Available reports whether the pool has at least one key and at least one
// of them is not currently cooling down.
func (p *Pool) Available() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return false
	}
	now := p.nowFn()
	for i := range p.keys {
		p.sweepCooldown(&p.keys[i], now)
		if !p.keys[i].InCooldown {
			return true
		}
	}
	return false
}

// Acquire returns the current key if it isn't cooling down, otherwise
// scans forward up to 2*len(keys) positions for one that isn't, advancing
// currentIndex to the position it found. It returns (Key{}, false) if every
// key is cooling down or the pool is empty.
func (p *Pool) Acquire() (Key, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.keys)
	if n == 0 {
		return Key{}, false
	}

	now := p.nowFn()
	for i := range p.keys {
		p.sweepCooldown(&p.keys[i], now)
	}

	for step := 0; step < 2*n; step++ {
		idx := (p.currentIndex + step) % n
		if !p.keys[idx].InCooldown {
			p.currentIndex = idx
			return p.keys[idx], true
		}
	}

	return Key{}, false
}

// MarkRateLimited puts the key at index into cooldown until now +
// resetWindow. No-op on an out-of-range index.
func (p *Pool) MarkRateLimited(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.keys) || p.neverRateLimits || !p.rotationEnabled {
		return
	}

	now := p.nowFn()
	k := &p.keys[index]
	k.InCooldown = true
	k.CooldownUntilNs = now.Add(p.resetWindow).UnixNano()
	k.LastRateLimitNs = now.UnixNano()
}

// RecordSuccess bumps UsageCount/LastUsedNs for the key at index without
// touching its cooldown state.
func (p *Pool) RecordSuccess(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.keys) {
		return
	}
	k := &p.keys[index]
	k.UsageCount++
	k.LastUsedNs = p.nowFn().UnixNano()
}

// Rotate advances currentIndex to the next available (not cooling down) key
// other than the current one and reports whether one was found.
func (p *Pool) Rotate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.keys)
	if n == 0 {
		return false
	}

	now := p.nowFn()
	for i := range p.keys {
		p.sweepCooldown(&p.keys[i], now)
	}

	for step := 1; step < n; step++ {
		idx := (p.currentIndex + step) % n
		if !p.keys[idx].InCooldown {
			p.currentIndex = idx
			return true
		}
	}
	return false
}

// sweepCooldown clears an expired cooldown in place. Must be called with
// p.mu held.
func (p *Pool) sweepCooldown(k *Key, now time.Time) {
	if k.InCooldown && now.UnixNano() >= k.CooldownUntilNs {
		k.InCooldown = false
	}
}

// Snapshot returns a copy of every key's current state, for diagnostics
// and tests.
func (p *Pool) Snapshot() []Key {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFn()
	out := make([]Key, len(p.keys))
	for i := range p.keys {
		p.sweepCooldown(&p.keys[i], now)
		out[i] = p.keys[i]
	}
	return out
}
