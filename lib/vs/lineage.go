package vs

// Lineage is an immutable snapshot of a branch's version sequence, used by
// the data path to resolve which entry of a key is visible.
type Lineage struct {
	branch string
	ids    []VersionID
	pos    map[VersionID]int
	// only the first limit versions are visible
	limit int
}

func newLineage(branch string, seq []VersionID) *Lineage {
	l := &Lineage{
		branch: branch,
		ids:    append([]VersionID(nil), seq...),
		pos:    make(map[VersionID]int, len(seq)),
		limit:  len(seq),
	}
	for i, id := range l.ids {
		l.pos[id] = i
	}
	return l
}

// Branch returns the name of the branch the snapshot was taken from.
func (l *Lineage) Branch() string {
	return l.branch
}

// Len returns the number of visible versions.
func (l *Lineage) Len() int {
	return l.limit
}

// IDs returns the visible versions, oldest first.
func (l *Lineage) IDs() []VersionID {
	return l.ids[:l.limit]
}

// Position returns the index of v in the sequence if v is visible.
func (l *Lineage) Position(v VersionID) (int, bool) {
	p, ok := l.pos[v]
	if !ok || p >= l.limit {
		return 0, false
	}
	return p, true
}

// Tail returns the newest visible version.
func (l *Lineage) Tail() (VersionID, bool) {
	if l.limit == 0 {
		return 0, false
	}
	return l.ids[l.limit-1], true
}

// upTo returns a view limited to the versions up to and including v
func (l *Lineage) upTo(v VersionID) (*Lineage, bool) {
	p, ok := l.Position(v)
	if !ok {
		return nil, false
	}
	c := *l
	c.limit = p + 1
	return &c, true
}
