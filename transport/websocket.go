package transport

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DialWebSocket connects to an LSP server exposed over a WebSocket
// endpoint (spec.md §4.1's alternate transport), reusing the same
// Content-Length framing core as Spawn so Client never needs to know
// which transport it's driving. Grounded on lsp/websocket_client.go's
// dialGorillaWebSocket + gorillaRWC adapter, trimmed of the retry loop
// that lives at the client/supervision layer in this design.
func DialWebSocket(url string, handshakeTimeout time.Duration) (*Transport, error) {
	netDialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	dialer := websocket.Dialer{
		NetDial: func(network, addr string) (net.Conn, error) {
			conn, err := netDialer.Dial(network, addr)
			if err != nil {
				return nil, err
			}
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn, nil
		},
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}

	conn, _, err := dialer.Dial(url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("transport: websocket dial %s: %w", url, err)
	}

	rwc := newGorillaRWC(conn)
	t := &Transport{writer: rwc, closer: rwc}
	go t.readLoop(bufio.NewReader(rwc))
	return t, nil
}

// gorillaRWC adapts a *websocket.Conn to io.ReadWriteCloser so the same
// bufio.Reader-based framer used for stdio can read it message by
// message, splitting a websocket frame across Read calls as needed.
type gorillaRWC struct {
	conn    *websocket.Conn
	readBuf []byte
	mu      sync.Mutex
}

func newGorillaRWC(conn *websocket.Conn) *gorillaRWC {
	return &gorillaRWC{conn: conn}
}

func (g *gorillaRWC) Read(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.readBuf) > 0 {
		n := copy(p, g.readBuf)
		g.readBuf = g.readBuf[n:]
		return n, nil
	}

	_, msg, err := g.conn.ReadMessage()
	if err != nil {
		return 0, err
	}
	n := copy(p, msg)
	if n < len(msg) {
		g.readBuf = msg[n:]
	}
	return n, nil
}

func (g *gorillaRWC) Write(p []byte) (int, error) {
	if err := g.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (g *gorillaRWC) Close() error {
	return g.conn.Close()
}

var _ io.ReadWriteCloser = (*gorillaRWC)(nil)
