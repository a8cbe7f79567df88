package client

import (
	"fmt"

	"github.com/myleshyson/lsprotocol-go/protocol"
	"lspmux/logger"
)

// DidOpen opens uri at version 1 and sends textDocument/didOpen
// (spec.md §4.2 "Document sync").
func (c *Client) DidOpen(uri, languageID, text string) error {
	version := c.docs.open(uri)
	params := protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			Uri:        protocol.DocumentUri(uri),
			LanguageId: protocol.LanguageKind(languageID),
			Version:    version,
			Text:       text,
		},
	}
	return c.sendNotification("textDocument/didOpen", params)
}

// changeRange is the wire shape of one incremental edit's pre-edit
// range; textDocumentContentChange below reproduces
// textDocument/didChange's contentChanges entries directly rather than
// guessing at lsprotocol-go's union representation for
// TextDocumentContentChangeEvent, which no retrieved teacher file
// constructs.
type changeRange struct {
	Start changePosition `json:"start"`
	End   changePosition `json:"end"`
}

type changePosition struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type textDocumentContentChange struct {
	Range *changeRange `json:"range,omitempty"`
	Text  string       `json:"text"`
}

type didChangeParams struct {
	TextDocument   versionedTextDocumentID     `json:"textDocument"`
	ContentChanges []textDocumentContentChange `json:"contentChanges"`
}

type versionedTextDocumentID struct {
	URI     string `json:"uri"`
	Version int32  `json:"version"`
}

// DidChangeFull bumps uri's version and sends the full replacement text,
// debounced 50ms trailing-edge when multiple calls arrive in a burst
// (spec.md §5 "Debouncing" — Full sync only).
func (c *Client) DidChangeFull(uri, text string) {
	c.docs.debounceFullSync(uri, func() {
		version, ok := c.docs.bump(uri)
		if !ok {
			return
		}
		params := didChangeParams{
			TextDocument:   versionedTextDocumentID{URI: uri, Version: version},
			ContentChanges: []textDocumentContentChange{{Text: text}},
		}
		if err := c.sendNotification("textDocument/didChange", params); err != nil {
			logger.Warn(fmt.Sprintf("%s: didChange failed for %s", c.ID, uri), err)
		}
	})
}

// IncrementalEdit is one pre-edit range replacement, sent immediately
// (never debounced) so the server observes edits in strict order.
type IncrementalEdit struct {
	StartLine, StartChar uint32
	EndLine, EndChar     uint32
	Text                 string
}

// DidChangeIncremental bumps uri's version and sends the given edits as
// a single textDocument/didChange carrying per-edit range entries
// (spec.md §4.2 "Incremental").
func (c *Client) DidChangeIncremental(uri string, edits []IncrementalEdit) error {
	version, ok := c.docs.bump(uri)
	if !ok {
		return fmt.Errorf("%s: didChange for closed document %s", c.ID, uri)
	}

	changes := make([]textDocumentContentChange, len(edits))
	for i, e := range edits {
		changes[i] = textDocumentContentChange{
			Range: &changeRange{
				Start: changePosition{Line: e.StartLine, Character: e.StartChar},
				End:   changePosition{Line: e.EndLine, Character: e.EndChar},
			},
			Text: e.Text,
		}
	}

	params := didChangeParams{
		TextDocument:   versionedTextDocumentID{URI: uri, Version: version},
		ContentChanges: changes,
	}
	return c.sendNotification("textDocument/didChange", params)
}

// DidSave sends textDocument/didSave with optional full text.
func (c *Client) DidSave(uri string, text *string) error {
	params := map[string]any{
		"textDocument": map[string]string{"uri": uri},
	}
	if text != nil {
		params["text"] = *text
	}
	return c.sendNotification("textDocument/didSave", params)
}

// DidClose removes uri's version entry and sends textDocument/didClose.
func (c *Client) DidClose(uri string) error {
	c.docs.close(uri)
	params := protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{Uri: protocol.DocumentUri(uri)},
	}
	return c.sendNotification("textDocument/didClose", params)
}
