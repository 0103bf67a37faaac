// Package claim serializes work per destination path.
//
// A claim is held in-process through a registry and, when a lock directory
// is configured, across processes through an advisory flock on a file named
// after the destination's hash. Claims never block: a destination already
// claimed is reported busy.
package claim

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"mvx/internal/services"
)

// Registry hands out destination claims.
type Registry struct {
	lockDir string

	mu   sync.Mutex
	held map[string]struct{}
}

// NewRegistry creates a registry. An empty lockDir limits claims to this
// process.
func NewRegistry(lockDir string) *Registry {
	return &Registry{lockDir: lockDir, held: make(map[string]struct{})}
}

// Claim is an exclusive hold on one destination.
type Claim struct {
	registry *Registry
	key      string
	lock     *flock.Flock
	once     sync.Once
}

// Acquire claims destination or fails with ErrDestinationBusy.
func (r *Registry) Acquire(destination string) (*Claim, error) {
	key, err := Key(destination)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidOption, "claim", "resolve destination", destination, err)
	}

	r.mu.Lock()
	if _, busy := r.held[key]; busy {
		r.mu.Unlock()
		return nil, busyError(destination, "another item in this run")
	}
	r.held[key] = struct{}{}
	r.mu.Unlock()

	c := &Claim{registry: r, key: key}
	if r.lockDir == "" {
		return c, nil
	}

	if err := os.MkdirAll(r.lockDir, 0o755); err != nil {
		r.forget(key)
		return nil, services.Wrap(services.ErrFinalizeIO, "claim", "create lock directory", r.lockDir, err)
	}
	lock := flock.New(r.LockPath(key))
	ok, err := lock.TryLock()
	if err != nil {
		r.forget(key)
		return nil, services.Wrap(services.ErrFinalizeIO, "claim", "acquire lock", destination, err)
	}
	if !ok {
		r.forget(key)
		return nil, busyError(destination, "another mvx process")
	}
	c.lock = lock
	return c, nil
}

// Release drops the claim. It is safe to call more than once.
func (c *Claim) Release() error {
	if c == nil {
		return nil
	}
	var err error
	c.once.Do(func() {
		if c.lock != nil {
			err = c.lock.Unlock()
		}
		c.registry.forget(c.key)
	})
	return err
}

// Key is the canonical identity of a destination path.
func Key(destination string) (string, error) {
	abs, err := filepath.Abs(destination)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// LockPath is the lock file guarding key.
func (r *Registry) LockPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(r.lockDir, hex.EncodeToString(sum[:16])+".lock")
}

func (r *Registry) forget(key string) {
	r.mu.Lock()
	delete(r.held, key)
	r.mu.Unlock()
}

func busyError(destination, holder string) error {
	return services.Wrap(services.ErrDestinationBusy, "claim", "acquire",
		fmt.Sprintf("%s is being written by %s", destination, holder), nil)
}
