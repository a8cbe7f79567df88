package client

import (
	"sync"
	"time"
)

// documentState is the per-URI version counter from spec.md §3
// "DocumentState": created on open, bumped on every change, removed on
// close.
type documentState struct {
	version  int32
	debounce *time.Timer
}

type documentTable struct {
	mu   sync.Mutex
	docs map[string]*documentState
}

func newDocumentTable() *documentTable {
	return &documentTable{docs: make(map[string]*documentState)}
}

func (dt *documentTable) open(uri string) int32 {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	dt.docs[uri] = &documentState{version: 1}
	return 1
}

// bump increments uri's stored version and returns it, or (0, false) if
// the document isn't open — a didChange racing a didClose.
func (dt *documentTable) bump(uri string) (int32, bool) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	ds, ok := dt.docs[uri]
	if !ok {
		return 0, false
	}
	ds.version++
	return ds.version, true
}

// close removes uri's entry, stopping any pending debounce timer so it
// can never fire a didChange for a document the caller just closed.
func (dt *documentTable) close(uri string) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	if ds, ok := dt.docs[uri]; ok {
		if ds.debounce != nil {
			ds.debounce.Stop()
		}
		delete(dt.docs, uri)
	}
}

func (dt *documentTable) isOpen(uri string) bool {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	_, ok := dt.docs[uri]
	return ok
}

// uris returns every currently open URI, backing Client.OpenURIs.
func (dt *documentTable) uris() []string {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	out := make([]string, 0, len(dt.docs))
	for u := range dt.docs {
		out = append(out, u)
	}
	return out
}

// clear empties the table and stops every pending debounce timer, used
// by Stop and on supervised restart, where the transport (and thus the
// debounce timers' reason to fire) is already gone.
func (dt *documentTable) clear() {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	for _, ds := range dt.docs {
		if ds.debounce != nil {
			ds.debounce.Stop()
		}
	}
	dt.docs = make(map[string]*documentState)
}

// debounceFullSync arranges for fire to run once, fullSyncDebounce after
// the last call for uri, collapsing a burst of full-text edits into one
// wire send (spec.md §5 "Debouncing"). Incremental sync never calls
// this — each edit is sent immediately to preserve ordering.
const fullSyncDebounce = 50 * time.Millisecond

func (dt *documentTable) debounceFullSync(uri string, fire func()) {
	dt.mu.Lock()
	defer dt.mu.Unlock()
	ds, ok := dt.docs[uri]
	if !ok {
		return
	}
	if ds.debounce != nil {
		ds.debounce.Stop()
	}
	ds.debounce = time.AfterFunc(fullSyncDebounce, fire)
}
