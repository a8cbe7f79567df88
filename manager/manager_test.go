package manager

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lspmux/client"
	"lspmux/config"
)

func TestResolveLanguage(t *testing.T) {
	idx := map[string]string{".ts": "typescript", ".rs": "rust"}

	lang, ok := resolveLanguage("/w/main.ts", idx)
	assert.True(t, ok)
	assert.Equal(t, "typescript", lang)

	_, ok = resolveLanguage("/w/README", idx)
	assert.False(t, ok, "a path with no extension must not resolve")

	_, ok = resolveLanguage("/w/build.sh", idx)
	assert.False(t, ok, "an unmapped extension must not resolve")

	lang, ok = resolveLanguage("/w/Main.TS", idx)
	assert.True(t, ok)
	assert.Equal(t, "typescript", lang, "extension lookup is case-insensitive")
}

func TestBuildExtensionIndex_SkipsDisabled(t *testing.T) {
	cfg := config.Config{Servers: map[string]config.ServerConfig{
		"rust":   {Extensions: []string{".rs"}, Enabled: true},
		"cobol":  {Extensions: []string{".cbl"}, Enabled: false},
	}}
	idx := buildExtensionIndex(cfg)
	assert.Contains(t, idx, ".rs")
	assert.NotContains(t, idx, ".cbl")
}

// fakeTransport mirrors client's test double, scoped to manager's
// integration tests against a real *client.Client wired to a fake wire.
type fakeTransport struct {
	mu        sync.Mutex
	sent      [][]byte
	onMessage func([]byte)
	onExit    func(error)
}

func (f *fakeTransport) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return nil
}
func (f *fakeTransport) OnMessage(cb func([]byte)) { f.onMessage = cb }
func (f *fakeTransport) OnStderr(func([]byte))     {}
func (f *fakeTransport) OnExit(cb func(error))      { f.onExit = cb }
func (f *fakeTransport) Kill() error                { return nil }

var _ client.Transport = (*fakeTransport)(nil)

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestDocumentOpened_LazyStartsClientOnce(t *testing.T) {
	cfg := config.Config{Servers: map[string]config.ServerConfig{
		"typescript": {Command: "tsserver", Extensions: []string{".ts"}, Enabled: true},
	}}
	m := New(cfg, "/workspace")

	var ft *fakeTransport
	var onMessage func([]byte)
	m.testDialer = func() (client.Transport, error) {
		ft = &fakeTransport{}
		return ft, nil
	}

	done := make(chan struct{})
	go func() {
		_, _ = m.DocumentOpened("/workspace/a.ts", "const x = 1;")
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for ft == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.NotNil(t, ft, "expected a client to start")

	onMessage = ft.onMessage
	deadline = time.Now().Add(2 * time.Second)
	for ft.sentCount() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, 1, ft.sentCount())

	var env struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	require.NoError(t, json.Unmarshal(ft.sent[0], &env))
	assert.Equal(t, "initialize", env.Method)

	onMessage([]byte(`{"jsonrpc":"2.0","id":` + string(env.ID) + `,"result":{"capabilities":{}}}`))
	<-done

	c, ok := m.ClientForPath("/workspace/a.ts")
	assert.True(t, ok)
	assert.NotNil(t, c)
}

// TestDocumentOpened_SendsExactlyOneDidOpen guards against the lazy-start
// path replaying didOpen for the very document that triggered the start:
// a first open of a language must produce initialize, initialized, and
// exactly one textDocument/didOpen — never two.
func TestDocumentOpened_SendsExactlyOneDidOpen(t *testing.T) {
	cfg := config.Config{Servers: map[string]config.ServerConfig{
		"typescript": {Command: "tsserver", Extensions: []string{".ts"}, Enabled: true},
	}}
	m := New(cfg, "/workspace")

	ft := &fakeTransport{}
	m.testDialer = func() (client.Transport, error) { return ft, nil }

	done := make(chan struct{})
	go func() {
		_, _ = m.DocumentOpened("/workspace/a.ts", "const x = 1;")
		close(done)
	}()

	waitForSentCount(t, ft, 1)
	respondToInit(t, ft)
	<-done

	waitForSentCount(t, ft, 3) // initialize, initialized, didOpen
	time.Sleep(20 * time.Millisecond)
	methods := sentMethods(t, ft)
	assert.Equal(t, []string{"initialize", "initialized", "textDocument/didOpen"}, methods)
}

// TestSupervisedRestart_ReopensTrackedDocuments exercises spec.md §8's
// e2e restart scenario: once a session restarts after an unexpected
// exit, the Manager must replay didOpen for every document it still
// considers open against that language.
func TestSupervisedRestart_ReopensTrackedDocuments(t *testing.T) {
	cfg := config.Config{Servers: map[string]config.ServerConfig{
		"typescript": {Command: "tsserver", Extensions: []string{".ts"}, Enabled: true},
	}}
	m := New(cfg, "/workspace")

	var mu sync.Mutex
	var transports []*fakeTransport
	m.testDialer = func() (client.Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		ft := &fakeTransport{}
		transports = append(transports, ft)
		return ft, nil
	}
	transportAt := func(i int) *fakeTransport {
		mu.Lock()
		defer mu.Unlock()
		if i >= len(transports) {
			return nil
		}
		return transports[i]
	}

	done := make(chan struct{})
	go func() {
		_, _ = m.DocumentOpened("/workspace/a.ts", "const x = 1;")
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for transportAt(0) == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	ft0 := transportAt(0)
	require.NotNil(t, ft0)
	waitForSentCount(t, ft0, 1)
	respondToInit(t, ft0)
	<-done
	waitForSentCount(t, ft0, 3)

	ft0.mu.Lock()
	onExit := ft0.onExit
	ft0.mu.Unlock()
	require.NotNil(t, onExit, "client must have registered an exit callback")
	onExit(assert.AnError)

	deadline = time.Now().Add(5 * time.Second)
	for transportAt(1) == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	ft1 := transportAt(1)
	require.NotNil(t, ft1, "expected a restart to dial a fresh transport")

	waitForSentCount(t, ft1, 1)
	respondToInit(t, ft1)

	waitForSentCount(t, ft1, 3) // initialize, initialized, reopened didOpen
	methods := sentMethods(t, ft1)
	assert.Equal(t, []string{"initialize", "initialized", "textDocument/didOpen"}, methods)
}

func waitForSentCount(t *testing.T, ft *fakeTransport, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ft.sentCount() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d sent messages, got %d", n, ft.sentCount())
}

func respondToInit(t *testing.T, ft *fakeTransport) {
	t.Helper()
	ft.mu.Lock()
	raw := ft.sent[0]
	onMessage := ft.onMessage
	ft.mu.Unlock()

	var env struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, "initialize", env.Method)
	onMessage([]byte(`{"jsonrpc":"2.0","id":` + string(env.ID) + `,"result":{"capabilities":{}}}`))
}

func sentMethods(t *testing.T, ft *fakeTransport) []string {
	t.Helper()
	ft.mu.Lock()
	defer ft.mu.Unlock()
	out := make([]string, len(ft.sent))
	for i, raw := range ft.sent {
		var env struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.Unmarshal(raw, &env))
		out[i] = env.Method
	}
	return out
}
