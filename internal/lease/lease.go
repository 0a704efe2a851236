package lease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TicketPrefix is the fixed prefix of every ticket file name. Directory
// listings filter on it so unrelated files in the lock directory are ignored.
const TicketPrefix = "index.lease."

var (
	// ErrHeld is returned by Acquire when the caller already holds the
	// lease. Double-acquire is a programming error, not a safe no-op.
	ErrHeld = errors.New("lease: already held by caller")

	// ErrNotHeld is returned by Release when the caller does not hold the
	// lease, and by callers asserting the hold precondition.
	ErrNotHeld = errors.New("lease: not held by caller")

	// ErrAcquireTimeout is returned by Acquire when AcquireTimeout elapses
	// before the caller becomes the holder. The caller's ticket is removed
	// before returning.
	ErrAcquireTimeout = errors.New("lease: acquire timed out")
)

// Ticket is one holder's bid for the lease.
type Ticket struct {
	RequestedAt int64  `json:"requested_at"`
	HolderID    string `json:"holder_id"`
}

// less orders tickets by (requested_at, holder_id). The minimum ticket is
// the lease holder.
func (t Ticket) less(o Ticket) bool {
	if t.RequestedAt != o.RequestedAt {
		return t.RequestedAt < o.RequestedAt
	}
	return t.HolderID < o.HolderID
}

// Options configures a Manager. The zero value gives reference behavior:
// poll forever with bounded backoff and never expire tickets.
type Options struct {
	// PollInterval is the initial wait between holder checks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxBackoff caps the exponential backoff of the poll loop.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// AcquireTimeout aborts Acquire with ErrAcquireTimeout after this long.
	// Zero means wait indefinitely.
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`

	// TicketTTL, when positive, makes tickets older than this invisible to
	// the holder computation. Zero disables expiry (reference behavior: a
	// crashed holder's ticket starves all other callers).
	TicketTTL time.Duration `yaml:"ticket_ttl"`

	// Clock supplies timestamps in nanoseconds since the epoch. Nil means
	// time.Now().UnixNano. Injectable for tests.
	Clock func() int64 `yaml:"-"`
}

const (
	defaultPollInterval = 2 * time.Millisecond
	defaultMaxBackoff   = 100 * time.Millisecond
)

// Manager acquires and releases leases on behalf of one process. Each
// Manager has a unique holder ID; two Managers in the same process are
// distinct holders and arbitrate against each other like separate processes.
//
// A Manager is safe for concurrent use, but the lease itself is
// non-reentrant: per resource there is at most one outstanding hold.
type Manager struct {
	holderID string
	opts     Options
	clock    func() int64

	mu   sync.Mutex
	held map[string]bool // lock dir -> held by us
}

// NewManager creates a Manager with a fresh unique holder ID.
func NewManager(opts Options) *Manager {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() int64 { return time.Now().UnixNano() }
	}
	return &Manager{
		holderID: uuid.NewString(),
		opts:     opts,
		clock:    clock,
		held:     make(map[string]bool),
	}
}

// HolderID returns this Manager's unique holder identifier.
func (m *Manager) HolderID() string {
	return m.holderID
}

// Acquire blocks until the caller is the sole recognized holder of the lease
// whose tickets live in lockDir. It returns ErrHeld if the caller already
// holds it, ErrAcquireTimeout if the configured timeout elapses, or the
// context error if ctx is cancelled. On timeout or cancellation the caller's
// ticket is removed, so an abandoned wait never blocks other holders.
func (m *Manager) Acquire(ctx context.Context, lockDir string) error {
	m.mu.Lock()
	if m.held[lockDir] {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrHeld, lockDir)
	}
	m.mu.Unlock()

	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return fmt.Errorf("lease: create lock dir: %w", err)
	}

	ticket := Ticket{RequestedAt: m.clock(), HolderID: m.holderID}
	if err := m.writeTicket(lockDir, ticket); err != nil {
		return err
	}
	slog.Debug("lease ticket written",
		"lock_dir", lockDir,
		"holder", m.holderID,
		"requested_at", ticket.RequestedAt)

	var deadline time.Time
	if m.opts.AcquireTimeout > 0 {
		deadline = time.Now().Add(m.opts.AcquireTimeout)
	}

	wait := m.opts.PollInterval
	for {
		holder, ok, err := m.currentHolder(lockDir)
		if err != nil {
			m.removeTicket(lockDir)
			return err
		}
		if ok && holder.HolderID == m.holderID {
			m.mu.Lock()
			m.held[lockDir] = true
			m.mu.Unlock()
			slog.Debug("lease acquired", "lock_dir", lockDir, "holder", m.holderID)
			return nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			m.removeTicket(lockDir)
			return fmt.Errorf("%w after %s: %s", ErrAcquireTimeout, m.opts.AcquireTimeout, lockDir)
		}

		select {
		case <-ctx.Done():
			m.removeTicket(lockDir)
			return fmt.Errorf("lease: acquire abandoned: %w", ctx.Err())
		case <-time.After(wait):
		}
		if wait *= 2; wait > m.opts.MaxBackoff {
			wait = m.opts.MaxBackoff
		}
	}
}

// Release removes the caller's ticket, promoting the next-smallest ticket to
// holder. Returns ErrNotHeld if the caller does not hold the lease.
func (m *Manager) Release(lockDir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[lockDir] {
		return fmt.Errorf("%w: %s", ErrNotHeld, lockDir)
	}
	delete(m.held, lockDir)
	if err := m.removeTicket(lockDir); err != nil {
		return err
	}
	slog.Debug("lease released", "lock_dir", lockDir, "holder", m.holderID)
	return nil
}

// HeldByUs reports whether this Manager is the current lease holder. It is a
// pure query over the ticket directory; a missing directory means no holder.
func (m *Manager) HeldByUs(lockDir string) (bool, error) {
	holder, ok, err := m.currentHolder(lockDir)
	if err != nil {
		return false, err
	}
	return ok && holder.HolderID == m.holderID, nil
}

// currentHolder computes the minimum live ticket in lockDir. ok is false
// when there is no holder: the directory is missing, empty, or every ticket
// is unparsable or expired.
func (m *Manager) currentHolder(lockDir string) (Ticket, bool, error) {
	entries, err := os.ReadDir(lockDir)
	if errors.Is(err, os.ErrNotExist) {
		return Ticket{}, false, nil
	}
	if err != nil {
		return Ticket{}, false, fmt.Errorf("lease: list tickets: %w", err)
	}

	var min Ticket
	found := false
	now := m.clock()
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), TicketPrefix) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(lockDir, e.Name()))
		if err != nil {
			// Ticket deleted between list and read; its holder released.
			continue
		}
		var t Ticket
		if err := json.Unmarshal(raw, &t); err != nil || t.HolderID == "" {
			// Mid-write or corrupt ticket: invisible, not an error.
			continue
		}
		if m.opts.TicketTTL > 0 && now-t.RequestedAt > int64(m.opts.TicketTTL) {
			slog.Debug("ignoring expired lease ticket",
				"lock_dir", lockDir,
				"holder", t.HolderID,
				"age_ns", now-t.RequestedAt)
			continue
		}
		if !found || t.less(min) {
			min = t
			found = true
		}
	}
	return min, found, nil
}

func (m *Manager) ticketPath(lockDir string) string {
	return filepath.Join(lockDir, TicketPrefix+m.holderID)
}

func (m *Manager) writeTicket(lockDir string, t Ticket) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("lease: marshal ticket: %w", err)
	}
	if err := os.WriteFile(m.ticketPath(lockDir), raw, 0o644); err != nil {
		return fmt.Errorf("lease: write ticket: %w", err)
	}
	return nil
}

func (m *Manager) removeTicket(lockDir string) error {
	err := os.Remove(m.ticketPath(lockDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lease: remove ticket: %w", err)
	}
	return nil
}
