package heap

const tableMaxLoad = 0.75

// entry is one slot in a Table. An empty slot has Key == nil. A deleted
// slot ("tombstone") also has Key == nil but Value == BoolVal(true), so
// findEntry can tell "never used" apart from "used, then deleted" while
// probing past it.
type entry struct {
	Key   *ObjString
	Value Value
}

func isTombstone(e entry) bool {
	return e.Key == nil && e.Value.Type == ValBool && e.Value.Bool
}

// Table is an open-addressed, linearly-probed hash table keyed by
// interned string identity. It backs globals, class method tables,
// instance field tables, and the VM's string-intern table itself.
type Table struct {
	Count   int // live entries plus tombstones; resizing drops tombstones and recounts
	entries []entry
}

func NewTable() *Table {
	return &Table{}
}

func (t *Table) capacity() int { return len(t.entries) }

// findEntry locates the slot for key: either the matching live entry,
// an empty slot suitable for insertion, or, when scanning stops at an
// empty slot, the first tombstone seen along the way (so Set can reuse
// tombstone slots instead of growing more than necessary).
func findEntry(entries []entry, key *ObjString) *entry {
	capacity := len(entries)
	index := key.Hash & uint32(capacity-1)
	var tombstone *entry
	for {
		e := &entries[index]
		if e.Key == nil {
			if e.Value.IsNil() {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
			if tombstone == nil {
				tombstone = e
			}
		} else if e.Key == key {
			return e
		}
		index = (index + 1) & uint32(capacity-1)
	}
}

func (t *Table) adjustCapacity(newCap int) {
	grown := make([]entry, newCap)
	for i := range grown {
		grown[i] = entry{Value: Nil()}
	}
	t.Count = 0
	for _, e := range t.entries {
		if e.Key == nil {
			continue
		}
		dest := findEntry(grown, e.Key)
		dest.Key = e.Key
		dest.Value = e.Value
		t.Count++
	}
	t.entries = grown
}

// Set installs value under key, growing the table first if the new
// entry would push the load factor above 0.75. Returns true iff key was
// not already present (a tombstone is not a present key). Reusing a
// tombstone slot does not increase Count, which already includes it.
func (t *Table) Set(key *ObjString, value Value) bool {
	if float64(t.Count+1) > float64(t.capacity())*tableMaxLoad {
		t.adjustCapacity(growCapacity(t.capacity()))
	}
	e := findEntry(t.entries, key)
	isNewKey := e.Key == nil
	if isNewKey && e.Value.IsNil() {
		t.Count++
	}
	e.Key = key
	e.Value = value
	return isNewKey
}

// Get reports the value bound to key, if any.
func (t *Table) Get(key *ObjString) (Value, bool) {
	if t.Count == 0 && len(t.entries) == 0 {
		return Nil(), false
	}
	e := findEntry(t.entries, key)
	if e.Key == nil {
		return Nil(), false
	}
	return e.Value, true
}

// Delete installs a tombstone at key's slot, if present.
func (t *Table) Delete(key *ObjString) bool {
	if t.Count == 0 && len(t.entries) == 0 {
		return false
	}
	e := findEntry(t.entries, key)
	if e.Key == nil {
		return false
	}
	e.Key = nil
	e.Value = BoolVal(true)
	return true
}

// FindString scans for the canonical interned string with the given
// content, comparing hash and length before bytes. Used by the compiler
// and VM to intern without allocating a duplicate when one already
// exists. Tombstones are passable during the scan; an empty slot with a
// nil value terminates it.
func (t *Table) FindString(chars string, hash uint32) *ObjString {
	if len(t.entries) == 0 {
		return nil
	}
	capacity := len(t.entries)
	index := hash & uint32(capacity-1)
	for {
		e := &t.entries[index]
		if e.Key == nil {
			if !isTombstone(*e) {
				return nil
			}
		} else if e.Key.Hash == hash && e.Key.Chars == chars {
			return e.Key
		}
		index = (index + 1) & uint32(capacity-1)
	}
}

// AddAll copies every live entry of from into to (used by INHERIT to
// copy a superclass's method table into a subclass).
func AddAll(from, to *Table) {
	for _, e := range from.entries {
		if e.Key != nil {
			to.Set(e.Key, e.Value)
		}
	}
}

// RemoveWhite deletes every entry whose key is unmarked. Called by the
// GC before sweep so the intern table never resurrects a string that
// nothing else references (it is a weak-reference table, not a root).
func RemoveWhite(t *Table) {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key != nil && !e.Key.Marked {
			e.Key = nil
			e.Value = BoolVal(true)
		}
	}
}

// Mark marks every key and every value stored in the table.
func (t *Table) Mark(h *Heap) {
	for _, e := range t.entries {
		if e.Key != nil {
			h.MarkObject(&e.Key.Obj)
			h.MarkValue(e.Value)
		}
	}
}
