package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/myleshyson/lsprotocol-go/protocol"

	"lspmux/logger"
	"lspmux/rpc"
)

// featureRequest implements the one-slot cancellation latch from
// spec.md §4.2/§9: registering the new PendingRequest, cancelling any
// predecessor on the wire first, sending, waiting, then clearing the
// slot only if nothing superseded this request meanwhile.
func (c *Client) featureRequest(slot, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	tr := c.transportRef()
	if tr == nil {
		return nil, fmt.Errorf("%s: not connected", c.ID)
	}

	pr := c.pending.register(method, timeout)

	if prevID, had := c.slots.supersede(slot, pr.id); had {
		c.sendCancel(prevID)
		c.pending.cancel(prevID)
	}

	env, err := rpc.NewRequest(pr.id, method, params)
	if err != nil {
		c.slots.clearIfCurrent(slot, pr.id)
		return nil, err
	}
	payload, err := json.Marshal(env)
	if err != nil {
		c.slots.clearIfCurrent(slot, pr.id)
		return nil, err
	}
	if err := tr.Send(payload); err != nil {
		c.slots.clearIfCurrent(slot, pr.id)
		return nil, err
	}

	res := <-pr.resolve
	c.slots.clearIfCurrent(slot, pr.id)
	return res.result, res.err
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type textDocumentPositionParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     position               `json:"position"`
}

// Hover issues a textDocument/hover request through the "hover" slot.
// A capability gate failure, protocol error or supersession all
// surface as a nil result to the caller per spec.md §4.2's feature-op
// table; real errors are logged, never returned.
func (c *Client) Hover(uri string, line, character uint32) *protocol.Hover {
	c.mu.Lock()
	gated := !c.caps.HoverProvider
	c.mu.Unlock()
	if gated {
		return nil
	}

	raw, err := c.featureRequest("hover", "textDocument/hover", textDocumentPositionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     position{Line: line, Character: character},
	}, 5*time.Second)
	if err != nil {
		c.logFeatureErr("hover", err)
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var result protocol.Hover
	if err := json.Unmarshal(raw, &result); err != nil {
		c.logFeatureErr("hover", err)
		return nil
	}
	return &result
}

// Definition issues textDocument/definition through the "definition"
// slot, accepting either Location[] or LocationLink[] wire shapes.
func (c *Client) Definition(uri string, line, character uint32) []protocol.Or2[protocol.LocationLink, protocol.Location] {
	c.mu.Lock()
	gated := !c.caps.DefinitionProvider
	c.mu.Unlock()
	if gated {
		return nil
	}

	raw, err := c.featureRequest("definition", "textDocument/definition", textDocumentPositionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     position{Line: line, Character: character},
	}, 5*time.Second)
	if err != nil {
		c.logFeatureErr("definition", err)
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var links []protocol.Or2[protocol.LocationLink, protocol.Location]
	if err := json.Unmarshal(raw, &links); err != nil {
		c.logFeatureErr("definition", err)
		return nil
	}
	return links
}

// TypeDefinition mirrors Definition for textDocument/typeDefinition
// (same wire shape per the LSP spec); lsprotocol-go's dedicated params
// type for this method is never constructed anywhere in the teacher's
// codebase, so the request params are built locally rather than guessed.
func (c *Client) TypeDefinition(uri string, line, character uint32) []protocol.Or2[protocol.LocationLink, protocol.Location] {
	c.mu.Lock()
	gated := !c.caps.TypeDefinitionProvider
	c.mu.Unlock()
	if gated {
		return nil
	}

	raw, err := c.featureRequest("typeDefinition", "textDocument/typeDefinition", textDocumentPositionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     position{Line: line, Character: character},
	}, 5*time.Second)
	if err != nil {
		c.logFeatureErr("typeDefinition", err)
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var links []protocol.Or2[protocol.LocationLink, protocol.Location]
	if err := json.Unmarshal(raw, &links); err != nil {
		c.logFeatureErr("typeDefinition", err)
		return nil
	}
	return links
}

type referenceParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Position     position               `json:"position"`
	Context      referenceContext       `json:"context"`
}

type referenceContext struct {
	IncludeDeclaration bool `json:"includeDeclaration"`
}

// References issues textDocument/references through the "references"
// slot with context.includeDeclaration = true per spec.md §4.2's table.
func (c *Client) References(uri string, line, character uint32) []protocol.Location {
	c.mu.Lock()
	gated := !c.caps.ReferencesProvider
	c.mu.Unlock()
	if gated {
		return nil
	}

	raw, err := c.featureRequest("references", "textDocument/references", referenceParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     position{Line: line, Character: character},
		Context:      referenceContext{IncludeDeclaration: true},
	}, 10*time.Second)
	if err != nil {
		c.logFeatureErr("references", err)
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var locations []protocol.Location
	if err := json.Unmarshal(raw, &locations); err != nil {
		c.logFeatureErr("references", err)
		return nil
	}
	return locations
}

// CompletionResult is the trimmed view of a textDocument/completion
// response this client exposes; lsprotocol-go's CompletionList/
// CompletionItem field set is never exercised by the teacher, so the
// shape is reproduced directly from the wire rather than guessed.
type CompletionResult struct {
	IsIncomplete bool               `json:"isIncomplete"`
	Items        []CompletionItem   `json:"items"`
}

type CompletionItem struct {
	Label         string `json:"label"`
	Kind          int    `json:"kind,omitempty"`
	Detail        string `json:"detail,omitempty"`
	Documentation string `json:"documentation,omitempty"`
	InsertText    string `json:"insertText,omitempty"`
}

// Completion issues textDocument/completion through the "completion"
// slot.
func (c *Client) Completion(uri string, line, character uint32) *CompletionResult {
	c.mu.Lock()
	gated := !c.caps.CompletionProvider
	c.mu.Unlock()
	if gated {
		return nil
	}

	raw, err := c.featureRequest("completion", "textDocument/completion", textDocumentPositionParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     position{Line: line, Character: character},
	}, 5*time.Second)
	if err != nil {
		c.logFeatureErr("completion", err)
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	// A bare CompletionItem[] is also legal; normalize into the List shape.
	var list CompletionResult
	if err := json.Unmarshal(raw, &list); err == nil && len(list.Items) > 0 {
		return &list
	}
	var items []CompletionItem
	if err := json.Unmarshal(raw, &items); err == nil {
		return &CompletionResult{Items: items}
	}
	return nil
}

func (c *Client) logFeatureErr(op string, err error) {
	if err == errCancelled {
		return
	}
	logger.Debug(fmt.Sprintf("%s: %s request failed", c.ID, op), err)
}
