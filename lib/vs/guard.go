package vs

import (
	"sync/atomic"

	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/google/uuid"
)

// Exclusive is the token required by operations that can not run next to
// readers (BranchSwap, VersionRevertGlobally, VersionRebase). While a
// guard is held the manager's write lock is taken: every other manager
// call and every data path call blocks until Release. The holder must only
// call the guarded operations.
type Exclusive struct {
	m        *Manager
	token    uuid.UUID
	released atomic.Bool
}

// Exclusive acquires the guard. It fails with ErrBusy while snapshots
// (open iterators) exist.
func (m *Manager) Exclusive() (*Exclusive, error) {
	m.mu.Lock()
	if n := m.readers.Load(); n > 0 {
		m.mu.Unlock()
		return nil, common.Errorf(common.ErrBusy, "%d open readers", n)
	}
	g := &Exclusive{m: m, token: uuid.New()}
	m.guard.Store(g)
	log.Debugf("exclusive guard %s acquired", g.token)
	return g, nil
}

// Token identifies the guard in logs.
func (g *Exclusive) Token() string {
	return g.token.String()
}

// Release gives up the guard. Releasing twice is a no-op.
func (g *Exclusive) Release() {
	if !g.released.CompareAndSwap(false, true) {
		return
	}
	g.m.guard.CompareAndSwap(g, nil)
	log.Debugf("exclusive guard %s released", g.token)
	g.m.mu.Unlock()
}

func (m *Manager) checkGuard(g *Exclusive) error {
	if g == nil || g.m != m || g.released.Load() || m.guard.Load() != g {
		return common.Errorf(common.ErrInvalidOperation, "operation requires a held exclusive guard")
	}
	return nil
}
