package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/myleshyson/lsprotocol-go/protocol"
)

// ProgressEvent is a normalized view of one $/progress payload, adapted
// from lsp/progress.go's ProgressEvent for the lsp_status reporting
// surface (SPEC_FULL.md §6).
type ProgressEvent struct {
	TokenKey   string
	Kind       string // begin|report|end|unknown
	Title      string
	Message    string
	Percentage *uint32
	Time       time.Time
}

// ProgressSnapshot is what the lsp_status tool reads.
type ProgressSnapshot struct {
	Active    []ProgressEvent
	LastEvent *ProgressEvent
}

// progressTracker tracks server-initiated workDone progress streams fed
// by $/progress notifications; it never gates any protocol behavior,
// only observability.
type progressTracker struct {
	mu     sync.RWMutex
	active map[string]ProgressEvent
	last   *ProgressEvent
}

func newProgressTracker() *progressTracker {
	return &progressTracker{active: make(map[string]ProgressEvent)}
}

func progressTokenKey(t protocol.ProgressToken) string {
	switch v := t.Value.(type) {
	case int32:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func (pt *progressTracker) update(params protocol.ProgressParams) {
	now := time.Now()
	key := progressTokenKey(params.Token)

	raw, err := json.Marshal(params.Value)
	if err != nil {
		return
	}

	var base struct {
		Kind       string  `json:"kind"`
		Title      string  `json:"title,omitempty"`
		Message    string  `json:"message,omitempty"`
		Percentage *uint32 `json:"percentage,omitempty"`
	}
	_ = json.Unmarshal(raw, &base)
	if base.Kind == "" {
		base.Kind = "unknown"
	}

	ev := ProgressEvent{TokenKey: key, Kind: base.Kind, Title: base.Title, Message: base.Message, Percentage: base.Percentage, Time: now}

	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.last = &ev
	switch ev.Kind {
	case "begin", "report":
		pt.active[key] = ev
	case "end":
		delete(pt.active, key)
	}
}

func (pt *progressTracker) snapshot() ProgressSnapshot {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	active := make([]ProgressEvent, 0, len(pt.active))
	for _, ev := range pt.active {
		active = append(active, ev)
	}
	var last *ProgressEvent
	if pt.last != nil {
		tmp := *pt.last
		last = &tmp
	}
	return ProgressSnapshot{Active: active, LastEvent: last}
}

// ProgressSnapshot returns the current $/progress activity for this
// session (spec.md §4.2 "$/progress tracking feeds an observable
// snapshot, never gates behavior").
func (c *Client) ProgressSnapshot() ProgressSnapshot {
	return c.prog.snapshot()
}
