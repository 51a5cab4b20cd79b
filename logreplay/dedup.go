package logreplay

// FileActionKey identifies one logical version of a data file: its path plus
// the unique ID of its deletion vector, if any. Two actions on the same path
// with different deletion vectors are distinct file versions.
type FileActionKey struct {
	Path       string
	DVUniqueID string
}

// Tracker is the seen-set accumulated newest-to-oldest across one replay
// pass. A file version is live iff its first occurrence in scan order is an
// add that was not already marked seen by a strictly newer batch. The set
// grows monotonically and is discarded when replay completes.
type Tracker struct {
	seen map[FileActionKey]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[FileActionKey]struct{})}
}

func (t *Tracker) Seen(key FileActionKey) bool {
	_, ok := t.seen[key]
	return ok
}

func (t *Tracker) Record(key FileActionKey) {
	t.seen[key] = struct{}{}
}

// CheckAndRecord reports whether key was already seen and records it.
func (t *Tracker) CheckAndRecord(key FileActionKey) bool {
	if t.Seen(key) {
		return true
	}
	t.Record(key)
	return false
}

func (t *Tracker) Len() int {
	return len(t.seen)
}
