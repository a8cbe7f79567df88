// Package client implements one LSP session over a transport.Transport:
// handshake, request/response correlation, feature-slot cancellation,
// document sync and supervised restart (spec.md §4.2). The teacher's
// lsp.LanguageClient (lsp/methods.go, lsp/types.go) covers the same
// ground through jsonrpc2.Conn; this package reproduces its method
// surface and timeout table while owning framing/correlation itself.
package client

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/myleshyson/lsprotocol-go/protocol"

	"lspmux/logger"
	"lspmux/rpc"
)

// Transport is the subset of *transport.Transport the client
// depends on; tests substitute a fake to drive handshake/cancellation
// scenarios without a real child process.
type Transport interface {
	Send([]byte) error
	OnMessage(func([]byte))
	OnStderr(func([]byte))
	OnExit(func(error))
	Kill() error
}

// Dialer starts a transport for one connection attempt. Start calls it
// on every (re)start; manager.Manager supplies one backed by
// transport.Spawn or transport.DialWebSocket, tests inject a fake dialer.
type Dialer func() (Transport, error)

// Config is the immutable server configuration a Client was built from
// (spec.md §3 "ServerConfig" as seen by one session).
type Config struct {
	Command string
	Args    []string
	Cwd     string
}

const maxRestarts = 3

// DiagnosticListener receives (uri, diagnostics) on every
// textDocument/publishDiagnostics notification.
type DiagnosticListener func(uri string, diagnostics []protocol.Diagnostic)

// Client is one LSP session: one server process, one handshake, one
// pending-request/slot/document table set (spec.md §3 "ClientSession").
type Client struct {
	ID     string
	cfg    Config
	dial   Dialer
	rootURI string

	mu          sync.Mutex
	tr          Transport
	initialized bool
	caps        serverCapabilities
	restarts    int
	stopped     bool

	pending *pendingTable
	slots   *slotTable
	docs    *documentTable
	prog    *progressTracker

	listenersMu sync.Mutex
	listeners   map[int]DiagnosticListener
	nextListener int

	onLog     func(string)
	onRestart func()

	unhandled *unhandledTracker
}

// New constructs a Client bound to cfg; dial is called to obtain a fresh
// transport for each (re)start.
func New(id string, cfg Config, dial Dialer) *Client {
	return &Client{
		ID:        id,
		cfg:       cfg,
		dial:      dial,
		pending:   newPendingTable(),
		slots:     newSlotTable(),
		docs:      newDocumentTable(),
		prog:      newProgressTracker(),
		listeners: make(map[int]DiagnosticListener),
		unhandled: newUnhandledTracker(id),
	}
}

// OnLog registers the sink for window/logMessage notifications
// (spec.md §4.2 "forward to host log sink").
func (c *Client) OnLog(cb func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onLog = cb
}

// OnRestart registers cb to run after every successful restart performed
// by the supervision ladder in handleExit (spec.md §4.2 "After a
// successful restart, the Manager must re-send didOpen for every
// document the manager still considers open against this language").
// It is not called for the initial Start — only for restarts following
// an unexpected exit.
func (c *Client) OnRestart(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRestart = cb
}

// OnDiagnostics registers a DiagnosticListener and returns an unsubscribe
// handle, per spec.md §9 "return an unsubscribe handle rather than
// exposing the list".
func (c *Client) OnDiagnostics(cb DiagnosticListener) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = cb
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Client) fanOutDiagnostics(uri string, diags []protocol.Diagnostic) {
	c.listenersMu.Lock()
	cbs := make([]DiagnosticListener, 0, len(c.listeners))
	for _, cb := range c.listeners {
		cbs = append(cbs, cb)
	}
	c.listenersMu.Unlock()
	for _, cb := range cbs {
		cb(uri, diags)
	}
}

// Initialized reports whether the handshake has completed.
func (c *Client) Initialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// Restarts reports how many times this session has restarted since its
// last clean Start, for lsp_status reporting (spec.md §4.2 "Supervision").
func (c *Client) Restarts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.restarts
}

// Command returns the configured launch command, for status reporting.
func (c *Client) Command() string {
	return c.cfg.Command
}

// Start performs spawn + initialize + initialized (spec.md §4.2
// "Handshake"). rootURI is sent as both the single workspace folder and
// the deprecated rootUri field that most servers still key off of.
func (c *Client) Start(rootURI string) error {
	tr, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tr = tr
	c.rootURI = rootURI
	c.stopped = false
	c.mu.Unlock()

	tr.OnMessage(c.handleMessage)
	tr.OnStderr(func(line []byte) {
		logger.Debug(fmt.Sprintf("%s stderr", c.ID), string(line))
	})
	tr.OnExit(c.handleExit)

	result, err := c.sendRequest("initialize", initializeParams{
		ProcessID:        nil,
		RootURI:          rootURI,
		WorkspaceFolders: []workspaceFolder{{URI: rootURI, Name: "root"}},
		Capabilities:     defaultClientCapabilities(),
	}, 15*time.Second)
	if err != nil {
		_ = tr.Kill()
		return fmt.Errorf("%s: initialize: %w", c.ID, err)
	}

	var initResult struct {
		Capabilities json.RawMessage `json:"capabilities"`
	}
	if err := json.Unmarshal(result, &initResult); err != nil {
		_ = tr.Kill()
		return fmt.Errorf("%s: malformed initialize result: %w", c.ID, err)
	}

	c.mu.Lock()
	c.caps = normalizeCapabilities(initResult.Capabilities)
	c.mu.Unlock()

	if err := c.sendNotification("initialized", struct{}{}); err != nil {
		_ = tr.Kill()
		return fmt.Errorf("%s: initialized notification: %w", c.ID, err)
	}

	c.mu.Lock()
	c.initialized = true
	c.restarts = 0
	c.mu.Unlock()

	return nil
}

// Stop performs the graceful shutdown sequence: shutdown request (5s),
// exit notification, then kill regardless of outcome (spec.md §4.2).
func (c *Client) Stop() {
	c.mu.Lock()
	tr := c.tr
	wasInitialized := c.initialized
	c.stopped = true
	c.initialized = false
	c.mu.Unlock()

	if tr == nil {
		return
	}

	if wasInitialized {
		_, _ = c.sendRequest("shutdown", nil, 5*time.Second)
		_ = c.sendNotification("exit", nil)
	}

	c.docs.clear()
	c.pending.drainAll()
	_ = tr.Kill()
}

// handleExit implements the supervised restart ladder (spec.md §4.2
// "Supervision"). Called from the transport's exit callback goroutine.
func (c *Client) handleExit(_ error) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.initialized = false
	rootURI := c.rootURI
	c.mu.Unlock()

	c.docs.clear()
	c.pending.drainAll()

	c.mu.Lock()
	c.restarts++
	restarts := c.restarts
	c.mu.Unlock()

	if restarts > maxRestarts {
		logger.Error(fmt.Sprintf("%s: exceeded %d restarts, giving up", c.ID, maxRestarts))
		return
	}

	delay := time.Duration(2000*(1<<uint(restarts-1))) * time.Millisecond
	logger.Warn(fmt.Sprintf("%s: server exited, restarting in %s (attempt %d/%d)", c.ID, delay, restarts, maxRestarts))

	time.AfterFunc(delay, func() {
		if err := c.Start(rootURI); err != nil {
			logger.Error(fmt.Sprintf("%s: restart attempt %d failed: %v", c.ID, restarts, err))
			return
		}
		c.mu.Lock()
		onRestart := c.onRestart
		c.mu.Unlock()
		if onRestart != nil {
			onRestart()
		}
	})
}

// OpenURIs returns every document this session currently considers
// open, used by lsp_status's open-file count.
func (c *Client) OpenURIs() []string {
	return c.docs.uris()
}

// handleMessage classifies one inbound framed payload (spec.md §4.2
// "Inbound messages are classified") and routes it.
func (c *Client) handleMessage(raw []byte) {
	var env rpc.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Warn(fmt.Sprintf("%s: malformed frame, dropping", c.ID), err)
		return
	}

	switch {
	case env.IsResponse():
		id, ok := rpc.RequestIDNumber(env.ID)
		if !ok {
			return
		}
		var result json.RawMessage
		if env.Result != nil {
			result = *env.Result
		}
		c.pending.resolve(id, result, env.Error)

	case env.IsServerRequest():
		c.handleServerRequest(env)

	case env.IsNotification():
		c.handleNotification(env)
	}
}

func (c *Client) handleServerRequest(env rpc.Envelope) {
	tr := c.transportRef()
	if tr == nil || env.ID == nil {
		return
	}

	reply := rpc.NewNullReply(*env.ID)
	if env.Method == "" {
		reply = rpc.NewErrorReply(*env.ID, rpc.ErrMethodNotFound)
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		return
	}
	_ = tr.Send(payload)
}

func (c *Client) handleNotification(env rpc.Envelope) {
	var params json.RawMessage
	if env.Params != nil {
		params = *env.Params
	}

	switch env.Method {
	case "textDocument/publishDiagnostics":
		var p struct {
			URI         string                `json:"uri"`
			Diagnostics []protocol.Diagnostic `json:"diagnostics"`
		}
		if err := json.Unmarshal(params, &p); err != nil {
			logger.Debug(fmt.Sprintf("%s: malformed publishDiagnostics", c.ID), err)
			return
		}
		c.fanOutDiagnostics(p.URI, p.Diagnostics)

	case "window/logMessage":
		var p struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(params, &p)
		c.mu.Lock()
		sink := c.onLog
		c.mu.Unlock()
		if sink != nil {
			sink(p.Message)
		}

	case "$/progress":
		var p protocol.ProgressParams
		if err := json.Unmarshal(params, &p); err == nil {
			c.prog.update(p)
		}

	default:
		c.logUnhandledNotification(env.Method, env.Params)
	}
}

func (c *Client) transportRef() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tr
}

// sendRequest registers a PendingRequest, writes it framed on the wire
// and blocks until resolved, timed out, cancelled or the client stops.
func (c *Client) sendRequest(method string, params any, timeout time.Duration) (json.RawMessage, error) {
	tr := c.transportRef()
	if tr == nil {
		return nil, fmt.Errorf("%s: not connected", c.ID)
	}

	pr := c.pending.register(method, timeout)
	env, err := rpc.NewRequest(pr.id, method, params)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	if err := tr.Send(payload); err != nil {
		return nil, err
	}

	res := <-pr.resolve
	return res.result, res.err
}

func (c *Client) sendNotification(method string, params any) error {
	tr := c.transportRef()
	if tr == nil {
		return fmt.Errorf("%s: not connected", c.ID)
	}
	env, err := rpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return tr.Send(payload)
}

type cancelParams struct {
	ID int64 `json:"id"`
}

// sendCancel writes a $/cancelRequest notification for id, used ahead
// of a superseding request (spec.md §5 ordering guarantee).
func (c *Client) sendCancel(id int64) {
	_ = c.sendNotification("$/cancelRequest", cancelParams{ID: id})
}
