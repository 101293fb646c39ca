package attachment

import (
	"sort"

	"github.com/fmuoria/recruitment-scoring/internal/models"
)

type entry struct {
	current models.Attachment
	// stored path displaced by a pending upload, restored if the upload is withdrawn
	previous string
	// attach sequence of a pending upload, zero once stored
	seq uint64
}

// Tracker records, per (record, parameter, row), whether the active file is a
// pending upload or an already stored path.
type Tracker struct {
	entries map[models.ValueKey]*entry
	seq     uint64
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[models.ValueKey]*entry)}
}

// Attach sets a pending upload for key. A stored path it displaces is kept
// aside so withdrawing the upload does not lose it.
func (t *Tracker) Attach(key models.ValueKey, f models.FileHandle) {
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	if e.current.IsStored() {
		e.previous = e.current.StoredPath()
	}
	t.seq++
	e.current = models.PendingAttachment(f)
	e.seq = t.seq
}

// PendingSeq identifies the pending upload at key, or returns 0 if there is none.
// Every Attach gets a new sequence.
func (t *Tracker) PendingSeq(key models.ValueKey) uint64 {
	if e, ok := t.entries[key]; ok && e.current.IsPending() {
		return e.seq
	}
	return 0
}

// Promote marks the pending upload at key stored under path, but only if it
// is still the upload identified by seq. A newer upload stays pending.
func (t *Tracker) Promote(key models.ValueKey, seq uint64, path string) bool {
	if seq == 0 || t.PendingSeq(key) != seq {
		return false
	}
	t.MarkStored(key, path)
	return true
}

// MarkStored records path as the stored file for key, dropping any pending upload
func (t *Tracker) MarkStored(key models.ValueKey, path string) {
	if path == "" {
		return
	}
	t.entries[key] = &entry{current: models.StoredAttachment(path)}
}

// Withdraw drops a pending upload and restores the displaced stored path, if any
func (t *Tracker) Withdraw(key models.ValueKey) {
	e, ok := t.entries[key]
	if !ok || !e.current.IsPending() {
		return
	}
	if e.previous != "" {
		t.entries[key] = &entry{current: models.StoredAttachment(e.previous)}
		return
	}
	delete(t.entries, key)
}

// Remove forgets key and returns the stored path it held, if any
func (t *Tracker) Remove(key models.ValueKey) string {
	e, ok := t.entries[key]
	if !ok {
		return ""
	}
	delete(t.entries, key)
	if e.current.IsStored() {
		return e.current.StoredPath()
	}
	return e.previous
}

// Get returns the active attachment for key
func (t *Tracker) Get(key models.ValueKey) models.Attachment {
	if e, ok := t.entries[key]; ok {
		return e.current
	}
	return models.Attachment{}
}

// Satisfied reports whether key has a pending or stored file
func (t *Tracker) Satisfied(key models.ValueKey) bool {
	return !t.Get(key).IsEmpty()
}

// ReleaseRows forgets every slot of subheadingID with row >= fromRow and
// returns the stored paths released, in key order.
func (t *Tracker) ReleaseRows(subheadingID int64, fromRow int) []string {
	var released []string
	for _, key := range t.Keys() {
		if key.SubheadingID != subheadingID || key.RowIndex < fromRow {
			continue
		}
		e := t.entries[key]
		if e.current.IsStored() {
			released = append(released, e.current.StoredPath())
		} else if e.previous != "" {
			released = append(released, e.previous)
		}
		delete(t.entries, key)
	}
	return released
}

// Keys returns tracked keys ordered by subheading, row, parameter
func (t *Tracker) Keys() []models.ValueKey {
	keys := make([]models.ValueKey, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.SubheadingID != b.SubheadingID {
			return a.SubheadingID < b.SubheadingID
		}
		if a.RowIndex != b.RowIndex {
			return a.RowIndex < b.RowIndex
		}
		return a.ParameterID < b.ParameterID
	})
	return keys
}
