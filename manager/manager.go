// Package manager implements the single process-wide coordinator
// (spec.md §4.3): extension→language routing, lazy client start,
// restart re-open replay, and idle teardown. Grounded on the teacher's
// bridge package (bridge/auto_connect.go's lazy-start-on-demand shape,
// bridge/warmup.go's "start ahead of first use" pattern), adapted to
// own a fixed set of client.Client sessions directly instead of the
// teacher's LSPServerManager interface indirection.
package manager

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"lspmux/client"
	"lspmux/config"
	"lspmux/logger"
	"lspmux/transport"
	"lspmux/utils"
)

// languageIDs translates internal language tags to the LSP
// "languageId" values servers expect (spec.md §4.3 "Language IDs");
// unknown tags pass through unchanged.
var languageIDs = map[string]string{
	"typescript": "typescript",
	"rust":       "rust",
	"python":     "python",
	"cpp":        "cpp",
}

func languageID(lang string) string {
	if id, ok := languageIDs[lang]; ok {
		return id
	}
	return lang
}

// openDocument is the manager's view of one tracked file: which
// language it belongs to and which client currently owns it.
type openDocument struct {
	path     string
	uri      string
	language string
}

// Manager is the process-wide coordinator. Exactly one should exist
// per editor/host process (spec.md §9 "Global manager singleton ...
// explicit new() and dispose()").
type Manager struct {
	mu sync.Mutex

	cfg           config.Config
	extensionIdx  map[string]string // ".ts" -> "typescript"
	explorerPath  string

	clients  map[string]*client.Client // language -> session
	starting map[string]bool
	docs     map[string]*openDocument // path -> document

	watcher *config.Watcher

	// testDialer overrides the real spawn/websocket dialer; set only by
	// tests in this package to drive ensureClient against a fake transport.
	testDialer client.Dialer
}

// New constructs a Manager from cfg. explorerPath is the host-provided
// workspace root; if empty, no client will ever start (spec.md §4.3
// "rootUri is derived from a host-provided explorer path; if unset, no
// client starts").
func New(cfg config.Config, explorerPath string) *Manager {
	m := &Manager{
		cfg:          cfg,
		extensionIdx: buildExtensionIndex(cfg),
		explorerPath: explorerPath,
		clients:      make(map[string]*client.Client),
		starting:     make(map[string]bool),
		docs:         make(map[string]*openDocument),
	}
	return m
}

func buildExtensionIndex(cfg config.Config) map[string]string {
	idx := make(map[string]string)
	for lang, sc := range cfg.Servers {
		if !sc.Enabled {
			continue
		}
		for _, ext := range sc.Extensions {
			idx[strings.ToLower(ext)] = lang
		}
	}
	return idx
}

// UpdateConfigs applies a partial override and rebuilds the
// extension→language index (spec.md §4.3 "updateConfigs").
func (m *Manager) UpdateConfigs(overrides config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = config.ApplyOverrides(m.cfg, overrides)
	m.extensionIdx = buildExtensionIndex(m.cfg)
}

// WatchConfig starts hot-reloading cfg from path, applying every
// reload through UpdateConfigs.
func (m *Manager) WatchConfig(path string) error {
	w, err := config.NewWatcher(path, m.UpdateConfigs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.watcher = w
	m.mu.Unlock()
	return nil
}

// resolveLanguage implements spec.md §4.3's extension resolution: the
// substring from the last '.' to end, lowercased.
func resolveLanguage(path string, idx map[string]string) (string, bool) {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 {
		return "", false
	}
	ext := strings.ToLower(path[dot:])
	lang, ok := idx[ext]
	return lang, ok
}

// DocumentOpened resolves path's language, lazily starts (or reuses)
// that language's client, then issues didOpen against it and begins
// tracking path. Returns the client if one is ready now; a nil return
// with no error means path maps to no configured language, or a start
// for its language is already in flight (spec.md §4.3 "Lazy start"); in
// both cases path is not tracked and no didOpen is sent.
//
// path is excluded from ensureClient's fresh-start reopen replay (it
// isn't tracked until after the client is ready) so a lazy start
// triggered by this very call never produces two didOpen notifications
// for the same document — one empty from the replay, one real from the
// explicit DidOpen below (spec.md §4.2/§8 "one didOpen seen with
// version 1").
func (m *Manager) DocumentOpened(path, content string) (*client.Client, error) {
	lang, ok := resolveLanguage(path, m.extensionIdxSnapshot())
	if !ok {
		return nil, nil
	}
	uri := utils.PathToURI(path)

	c, err := m.ensureClient(lang, path)
	if err != nil || c == nil {
		return c, err
	}

	m.mu.Lock()
	m.docs[path] = &openDocument{path: path, uri: uri, language: lang}
	m.mu.Unlock()

	if err := c.DidOpen(uri, languageID(lang), content); err != nil {
		logger.Warn(fmt.Sprintf("manager: didOpen failed for %s", path), err)
	}
	return c, nil
}

func (m *Manager) extensionIdxSnapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extensionIdx
}

// ensureClient returns the initialized client for lang, starting one if
// none exists and none is already starting (spec.md §4.3). excludePath,
// if non-empty, is omitted from the fresh-start reopen replay because
// its caller (DocumentOpened) is about to send its own didOpen with the
// real document content.
func (m *Manager) ensureClient(lang, excludePath string) (*client.Client, error) {
	m.mu.Lock()
	if c, ok := m.clients[lang]; ok {
		m.mu.Unlock()
		return c, nil
	}
	if m.starting[lang] {
		m.mu.Unlock()
		return nil, nil
	}
	if m.explorerPath == "" {
		m.mu.Unlock()
		return nil, fmt.Errorf("manager: no workspace root configured, cannot start %s", lang)
	}
	sc, ok := m.cfg.Servers[lang]
	if !ok || !sc.Enabled {
		m.mu.Unlock()
		return nil, fmt.Errorf("manager: no enabled server config for %s", lang)
	}
	m.starting[lang] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.starting, lang)
		m.mu.Unlock()
	}()

	rootURI := utils.PathToURI(m.explorerPath)
	dial := m.testDialer
	if dial == nil {
		dial = dialerFor(sc, m.explorerPath)
	}
	c := client.New(fmt.Sprintf("lsp-%s", lang), client.Config{Command: sc.Command, Args: sc.Args, Cwd: m.explorerPath}, dial)

	// Every restart after the first is driven by this hook rather than
	// by the fresh-start branch below (spec.md §4.2 "After a successful
	// restart, the Manager must re-send didOpen for every document the
	// manager still considers open against this language").
	c.OnRestart(func() {
		m.mu.Lock()
		paths := m.pathsForLanguageLocked(lang)
		m.mu.Unlock()
		m.reopenTrackedDocuments(c, lang, paths, "")
	})

	if err := c.Start(rootURI); err != nil {
		return nil, fmt.Errorf("manager: starting %s: %w", lang, err)
	}

	m.mu.Lock()
	m.clients[lang] = c
	openPaths := m.pathsForLanguageLocked(lang)
	m.mu.Unlock()

	m.reopenTrackedDocuments(c, lang, openPaths, excludePath)

	return c, nil
}

// SetTestDialer overrides the real spawn/websocket dialer with dial,
// used by tests outside this package (mcpserver/tools) to drive a
// Manager against a fake transport without a real child process.
func (m *Manager) SetTestDialer(dial client.Dialer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.testDialer = dial
}

func dialerFor(sc config.ServerConfig, cwd string) client.Dialer {
	return func() (client.Transport, error) {
		switch sc.EffectiveMode() {
		case config.ModeWebSocket:
			return transport.DialWebSocket(fmt.Sprintf("ws://%s:%d/lsp", sc.Host, sc.Port), 45*time.Second)
		default:
			return transport.Spawn(sc.Command, sc.Args, cwd)
		}
	}
}

func (m *Manager) pathsForLanguageLocked(lang string) []string {
	var out []string
	for path, doc := range m.docs {
		if doc.language == lang {
			out = append(out, path)
		}
	}
	return out
}

// reopenTrackedDocuments replays didOpen for every document the manager
// still considers open against lang, against a freshly (re)started
// client — covers both the initial lazy-start path (via ensureClient)
// and the supervised-restart path (via Client.OnRestart), per spec.md
// §4.2 "After a successful restart, the Manager must re-send didOpen".
// excludePath is skipped; it is non-empty only on the fresh-start path,
// where the caller that triggered the start is about to send its own
// didOpen with real content.
func (m *Manager) reopenTrackedDocuments(c *client.Client, lang string, paths []string, excludePath string) {
	for _, path := range paths {
		if path == excludePath {
			continue
		}
		m.mu.Lock()
		doc, ok := m.docs[path]
		m.mu.Unlock()
		if !ok {
			continue
		}
		// Content isn't tracked by the manager (the host owns the editor
		// buffer); an empty-string reopen is accepted behavior per
		// spec.md §9's open question on stale reopen text.
		if err := c.DidOpen(doc.uri, languageID(lang), ""); err != nil {
			logger.Warn(fmt.Sprintf("manager: reopen failed for %s", path), err)
		}
	}
}

// DocumentClosed removes path's tracking entry, forwards didClose, and
// tears the client down once no other open document shares its
// language (spec.md §4.3 "Teardown on idle").
func (m *Manager) DocumentClosed(path string) {
	m.mu.Lock()
	doc, ok := m.docs[path]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.docs, path)
	lang := doc.language
	c := m.clients[lang]
	remaining := len(m.pathsForLanguageLocked(lang))
	m.mu.Unlock()

	if c == nil {
		return
	}
	if err := c.DidClose(doc.uri); err != nil {
		logger.Warn(fmt.Sprintf("manager: didClose failed for %s", path), err)
	}

	if remaining == 0 {
		c.Stop()
		m.mu.Lock()
		delete(m.clients, lang)
		m.mu.Unlock()
	}
}

// ClientFor returns the session for lang, if running.
func (m *Manager) ClientFor(lang string) (*client.Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[lang]
	return c, ok
}

// RunningClients returns a language-keyed snapshot of every session
// currently running, for lsp_status reporting.
func (m *Manager) RunningClients() map[string]*client.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*client.Client, len(m.clients))
	for lang, c := range m.clients {
		out[lang] = c
	}
	return out
}

// ClientForPath resolves path's language and returns its session.
func (m *Manager) ClientForPath(path string) (*client.Client, bool) {
	m.mu.Lock()
	lang, ok := resolveLanguage(path, m.extensionIdx)
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	c, ok := m.clients[lang]
	m.mu.Unlock()
	return c, ok
}

// PathToURI/URIToPath expose utils' conversion so callers never need
// to import utils directly (spec.md §4.3 "Path <-> URI").
func (m *Manager) PathToURI(path string) string       { return utils.PathToURI(path) }
func (m *Manager) URIToPath(uri string) (string, error) { return utils.URIToPath(uri) }

// Dispose stops every running client and releases the config watcher
// (spec.md §9 "explicit new() and dispose()").
func (m *Manager) Dispose() {
	m.mu.Lock()
	clients := make([]*client.Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.clients = make(map[string]*client.Client)
	watcher := m.watcher
	m.watcher = nil
	m.mu.Unlock()

	for _, c := range clients {
		c.Stop()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
}
