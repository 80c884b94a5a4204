package vs

import (
	"github.com/ValentinKolb/vsdb/lib/common"
	"github.com/ValentinKolb/vsdb/lib/db"
	"github.com/ValentinKolb/vsdb/lib/keys"
)

// DropCollection deletes every versioned entry of collection p together
// with its change-set index entries, in one batch.
func (m *Manager) DropCollection(p keys.Prefix) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkPoison(); err != nil {
		return err
	}

	var (
		b       db.Batch
		touched []*version
	)
	for _, ver := range m.versions {
		lower, upper := changeSetPrefixRange(ver.id, p)
		n := b.Len()
		err := m.scan(lower, upper, func(k, _ []byte) error {
			b.Remove(append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		if b.Len() > n {
			touched = append(touched, ver)
		}
	}

	lower, upper := keys.VersionedRange(p)
	err := m.scan(lower, upper, func(k, _ []byte) error {
		b.Remove(append([]byte(nil), k...))
		return nil
	})
	if err != nil {
		return err
	}

	if b.Len() == 0 {
		return nil
	}
	if err := m.engine.WriteBatch(b.Ops); err != nil {
		return common.EngineErr(err, "drop collection %d", p)
	}
	for _, ver := range touched {
		if err := m.refreshChanged(ver); err != nil {
			return err
		}
	}
	mutationCounter("drop_collection").Inc()
	log.Infof("dropped versioned collection %d (%d entries)", p, b.Len())
	return nil
}
