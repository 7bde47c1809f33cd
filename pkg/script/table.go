package script

import "sync"

// Table holds compiled-in scripts keyed by file name.
type Table struct {
	lock    sync.RWMutex
	scripts map[string][]byte
}

// Builtin is the default table used when storage doesn't have the script.
var Builtin = &Table{}

// Register adds or replaces a script.
func (t *Table) Register(name string, data []byte) {
	t.lock.Lock()
	defer t.lock.Unlock()
	if t.scripts == nil {
		t.scripts = make(map[string][]byte)
	}
	t.scripts[name] = data
}

// Lookup finds a script by name.
func (t *Table) Lookup(name string) ([]byte, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	data, ok := t.scripts[name]
	return data, ok
}
