package service

import (
	"context"
	"sync"
	"time"
)

// TokenDenylist records revoked token ids until the token's own expiry.
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryDenylist is a process-local TokenDenylist. Entries are dropped lazily once expired.
type MemoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryDenylist() *MemoryDenylist {
	return &MemoryDenylist{revoked: make(map[string]time.Time), now: time.Now}
}

func (d *MemoryDenylist) Revoke(_ context.Context, tokenID string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweep()
	if until.After(d.now()) {
		d.revoked[tokenID] = until
	}
	return nil
}

func (d *MemoryDenylist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	until, ok := d.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !until.After(d.now()) {
		delete(d.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

// sweep must be called with mu held.
func (d *MemoryDenylist) sweep() {
	now := d.now()
	for id, until := range d.revoked {
		if !until.After(now) {
			delete(d.revoked, id)
		}
	}
}
