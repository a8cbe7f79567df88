package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
)

// pendingRequest is the in-flight record for one outbound request
// (spec.md §3 "PendingRequest"): a resolver/rejecter pair plus the
// timer guarding its deadline.
type pendingRequest struct {
	id       int64
	method   string
	resolve  chan rpcResult
	timer    *time.Timer
	resolved bool
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

// pendingTable holds every PendingRequest, keyed by request ID, and is
// the sole authority on id generation: it is the "single logical owner"
// spec.md §5 requires for serializing mutation of a session's pending
// table. One pendingTable is shared by all goroutines of a Client under
// its mutex.
type pendingTable struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*pendingRequest
}

func newPendingTable() *pendingTable {
	return &pendingTable{nextID: 1, entries: make(map[int64]*pendingRequest)}
}

// register allocates the next strictly-increasing ID and installs a
// PendingRequest whose timer rejects it with a timeout error if no
// response/cancellation arrives first.
func (pt *pendingTable) register(method string, timeout time.Duration) *pendingRequest {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	id := pt.nextID
	pt.nextID++

	pr := &pendingRequest{id: id, method: method, resolve: make(chan rpcResult, 1)}
	pt.entries[id] = pr

	pr.timer = time.AfterFunc(timeout, func() {
		pt.timeout(id, timeout)
	})

	return pr
}

func (pt *pendingTable) timeout(id int64, after time.Duration) {
	pt.mu.Lock()
	pr, ok := pt.entries[id]
	if ok {
		delete(pt.entries, id)
	}
	pt.mu.Unlock()

	if !ok || pr.resolved {
		return
	}
	pr.resolved = true
	pr.resolve <- rpcResult{err: fmt.Errorf("request %q timed out after %s", pr.method, after)}
}

// resolve completes the PendingRequest matching id with result/err,
// iff it is still present — a stale response whose entry was already
// removed (timeout, cancel, teardown) is dropped silently per spec.md
// §4.2 "If no match: drop silently".
func (pt *pendingTable) resolve(id int64, result json.RawMessage, rpcErr *jsonrpc2.Error) {
	pt.mu.Lock()
	pr, ok := pt.entries[id]
	if ok {
		delete(pt.entries, id)
	}
	pt.mu.Unlock()

	if !ok {
		return
	}
	pr.timer.Stop()
	if pr.resolved {
		return
	}
	pr.resolved = true

	if rpcErr != nil {
		pr.resolve <- rpcResult{err: fmt.Errorf("%s (code %d)", rpcErr.Message, rpcErr.Code)}
		return
	}
	pr.resolve <- rpcResult{result: result}
}

// cancel locally rejects the entry for id with a "cancelled" error,
// used by the feature-slot supersession path. It removes the entry so
// a stale server reply is later dropped as unmatched.
func (pt *pendingTable) cancel(id int64) {
	pt.mu.Lock()
	pr, ok := pt.entries[id]
	if ok {
		delete(pt.entries, id)
	}
	pt.mu.Unlock()

	if !ok || pr.resolved {
		return
	}
	pr.timer.Stop()
	pr.resolved = true
	pr.resolve <- rpcResult{err: errCancelled}
}

// drainAll rejects every still-pending entry with "client stopped",
// used by stop() and by the restart supervision path.
func (pt *pendingTable) drainAll() {
	pt.mu.Lock()
	entries := pt.entries
	pt.entries = make(map[int64]*pendingRequest)
	pt.mu.Unlock()

	for _, pr := range entries {
		pr.timer.Stop()
		if pr.resolved {
			continue
		}
		pr.resolved = true
		pr.resolve <- rpcResult{err: errClientStopped}
	}
}

var (
	errCancelled     = fmt.Errorf("request cancelled")
	errClientStopped = fmt.Errorf("client stopped")
)
