package client

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"lspmux/logger"
)

// Rate-limited logging for notifications this client has no handler for:
// a flood of, say, $/telemetry/event notifications should never drown out
// real signal. Each Client owns its own tracker instead of sharing one
// process-wide table, because lspmuxd multiplexes several concurrent
// per-language sessions (spec.md §4.3) and a noisy rust-analyzer burst
// must not suppress an unrelated clangd notification of the same method
// name.
type unhandledLevel string

const (
	unhandledOff   unhandledLevel = "off"
	unhandledDebug unhandledLevel = "debug"
	unhandledInfo  unhandledLevel = "info"
)

type unhandledConfig struct {
	level         unhandledLevel
	window        time.Duration
	burstPerKey   int
	maxParamBytes int
}

var (
	unhandledCfgOnce sync.Once
	unhandledCfg     unhandledConfig
)

func loadUnhandledConfig() unhandledConfig {
	cfg := unhandledConfig{
		level:         unhandledDebug,
		window:        10 * time.Second,
		burstPerKey:   3,
		maxParamBytes: 4096,
	}

	if v := os.Getenv("LSPMUX_UNHANDLED_NOTIFICATIONS_LEVEL"); v != "" {
		switch unhandledLevel(v) {
		case unhandledOff, unhandledDebug, unhandledInfo:
			cfg.level = unhandledLevel(v)
		}
	}
	if v := os.Getenv("LSPMUX_UNHANDLED_NOTIFICATIONS_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.window = d
		}
	}
	if v := os.Getenv("LSPMUX_UNHANDLED_NOTIFICATIONS_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.burstPerKey = n
		}
	}
	if v := os.Getenv("LSPMUX_UNHANDLED_NOTIFICATIONS_MAX_PARAM_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.maxParamBytes = n
		}
	}
	return cfg
}

// sharedUnhandledConfig returns the process-wide rate-limit settings,
// loaded from the environment on first use. The knobs are operator
// config, not per-session state, so every session reads the same values;
// only the counters below are kept per-session.
func sharedUnhandledConfig() unhandledConfig {
	unhandledCfgOnce.Do(func() { unhandledCfg = loadUnhandledConfig() })
	return unhandledCfg
}

// unhandledBucket tracks one method's emit/suppress counters within the
// current rate-limit window.
type unhandledBucket struct {
	windowStart time.Time
	emitted     int
	suppressed  int
	warnedFlood bool
}

// unhandledTracker is one session's view of its own unhandled-notification
// traffic, isolated from every other session this process is running so a
// flood against one language server can't suppress logging for another.
type unhandledTracker struct {
	sessionID string

	mu      sync.Mutex
	buckets map[string]*unhandledBucket
}

func newUnhandledTracker(sessionID string) *unhandledTracker {
	return &unhandledTracker{sessionID: sessionID, buckets: make(map[string]*unhandledBucket)}
}

// record applies the burst/window policy for one method and returns the
// message to log, if any; ok is false when nothing should be logged.
func (t *unhandledTracker) record(cfg unhandledConfig, method string, rawParams *json.RawMessage) (msg string, ok bool) {
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.buckets[method]
	if b == nil {
		b = &unhandledBucket{windowStart: now}
		t.buckets[method] = b
	}

	if cfg.window > 0 && now.Sub(b.windowStart) >= cfg.window {
		flushed := ""
		if b.suppressed > 0 {
			flushed = fmt.Sprintf("%s: unhandled notification suppressed: method=%s suppressed=%d window=%s",
				t.sessionID, method, b.suppressed, cfg.window)
		}
		b.windowStart = now
		b.emitted = 0
		b.suppressed = 0
		b.warnedFlood = false
		if flushed != "" {
			return flushed, true
		}
	}

	if cfg.burstPerKey == 0 || b.emitted >= cfg.burstPerKey {
		b.suppressed++
		if !b.warnedFlood && cfg.burstPerKey > 0 {
			b.warnedFlood = true
			return fmt.Sprintf("%s: unhandled notification flood: method=%s burst=%d window=%s (suppressing)",
				t.sessionID, method, cfg.burstPerKey, cfg.window), true
		}
		return "", false
	}

	b.emitted++
	msg = fmt.Sprintf("%s: unhandled notification: %s", t.sessionID, method)
	if rawParams != nil && len(*rawParams) > 0 && cfg.maxParamBytes != 0 {
		p := []byte(*rawParams)
		if cfg.maxParamBytes > 0 && len(p) > cfg.maxParamBytes {
			msg = fmt.Sprintf("%s params=%s...(truncated)", msg, string(p[:cfg.maxParamBytes]))
		} else {
			msg = fmt.Sprintf("%s params=%s", msg, string(p))
		}
	}
	return msg, true
}

// logUnhandledNotification is called from handleNotification's default
// case for every method this Client has no dedicated handler for.
func (c *Client) logUnhandledNotification(method string, rawParams *json.RawMessage) {
	cfg := sharedUnhandledConfig()
	if cfg.level == unhandledOff {
		return
	}
	msg, ok := c.unhandled.record(cfg, method, rawParams)
	if !ok {
		return
	}
	if cfg.level == unhandledInfo {
		logger.Info(msg)
		return
	}
	logger.Debug(msg)
}
