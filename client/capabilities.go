package client

import "encoding/json"

// initializeParams is the wire shape of the "initialize" request. The
// teacher feeds this to protocol.InitializeParams via jsonrpc2.Conn's
// typed Call; since Transport here only ever ships raw JSON, the wire
// fields are reproduced directly rather than guessing at
// lsprotocol-go's internal struct tags for a type this codebase never
// actually constructs field-by-field (methods.go only proves the type
// name, not its shape).
type initializeParams struct {
	ProcessID        *int               `json:"processId"`
	RootURI          string             `json:"rootUri"`
	WorkspaceFolders []workspaceFolder  `json:"workspaceFolders"`
	Capabilities     clientCapabilities `json:"capabilities"`
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// clientCapabilities mirrors spec.md §6's "Client capabilities sent in
// initialize" block exactly.
type clientCapabilities struct {
	TextDocument textDocumentCapabilities `json:"textDocument"`
	Workspace    workspaceCapabilities    `json:"workspace"`
}

type textDocumentCapabilities struct {
	Completion         completionCapability `json:"completion"`
	Hover              hoverCapability      `json:"hover"`
	Definition         struct{}             `json:"definition"`
	References         struct{}             `json:"references"`
	TypeDefinition     struct{}             `json:"typeDefinition"`
	PublishDiagnostics publishDiagCapability `json:"publishDiagnostics"`
	Synchronization    syncCapability        `json:"synchronization"`
}

type completionCapability struct {
	CompletionItem completionItemCapability `json:"completionItem"`
}

type completionItemCapability struct {
	SnippetSupport      bool     `json:"snippetSupport"`
	DocumentationFormat []string `json:"documentationFormat"`
}

type hoverCapability struct {
	ContentFormat []string `json:"contentFormat"`
}

type publishDiagCapability struct {
	RelatedInformation bool `json:"relatedInformation"`
}

type syncCapability struct {
	DidSave bool `json:"didSave"`
}

type workspaceCapabilities struct {
	WorkspaceFolders bool `json:"workspaceFolders"`
}

// defaultClientCapabilities builds the fixed capabilities block
// spec.md §6 mandates; it never varies per server.
func defaultClientCapabilities() clientCapabilities {
	return clientCapabilities{
		TextDocument: textDocumentCapabilities{
			Completion: completionCapability{
				CompletionItem: completionItemCapability{
					SnippetSupport:      false,
					DocumentationFormat: []string{"markdown", "plaintext"},
				},
			},
			Hover:              hoverCapability{ContentFormat: []string{"markdown", "plaintext"}},
			PublishDiagnostics: publishDiagCapability{RelatedInformation: true},
			Synchronization:    syncCapability{DidSave: true},
		},
		Workspace: workspaceCapabilities{WorkspaceFolders: true},
	}
}

// syncKind mirrors the LSP TextDocumentSyncKind enum (spec.md GLOSSARY).
type syncKind int

const (
	syncNone        syncKind = 0
	syncFull        syncKind = 1
	syncIncremental syncKind = 2
)

// serverCapabilities is a normalized view over the server's raw
// "capabilities" object, collapsing the number-vs-object and
// bool-vs-object ambiguities spec.md §9 calls out so the rest of the
// client only ever reads plain booleans and a resolved sync kind.
type serverCapabilities struct {
	SyncKind               syncKind
	HoverProvider          bool
	DefinitionProvider     bool
	TypeDefinitionProvider bool
	ReferencesProvider     bool
	CompletionProvider     bool
}

// rawServerCapabilities captures the handful of fields normalizeCapabilities
// needs to inspect, leaving everything else as RawMessage so an
// unrecognized shape never fails to unmarshal.
type rawServerCapabilities struct {
	TextDocumentSync       json.RawMessage `json:"textDocumentSync"`
	HoverProvider          json.RawMessage `json:"hoverProvider"`
	DefinitionProvider     json.RawMessage `json:"definitionProvider"`
	TypeDefinitionProvider json.RawMessage `json:"typeDefinitionProvider"`
	ReferencesProvider     json.RawMessage `json:"referencesProvider"`
	CompletionProvider     json.RawMessage `json:"completionProvider"`
}

func normalizeCapabilities(raw json.RawMessage) serverCapabilities {
	var rc rawServerCapabilities
	_ = json.Unmarshal(raw, &rc)

	return serverCapabilities{
		SyncKind:               normalizeSyncKind(rc.TextDocumentSync),
		HoverProvider:          providerEnabled(rc.HoverProvider),
		DefinitionProvider:     providerEnabled(rc.DefinitionProvider),
		TypeDefinitionProvider: providerEnabled(rc.TypeDefinitionProvider),
		ReferencesProvider:     providerEnabled(rc.ReferencesProvider),
		CompletionProvider:     providerEnabled(rc.CompletionProvider),
	}
}

// normalizeSyncKind handles textDocumentSync as a bare number or as an
// object carrying a "change" field, defaulting to Full per spec.md §4.2.
func normalizeSyncKind(raw json.RawMessage) syncKind {
	if len(raw) == 0 {
		return syncFull
	}

	var asNumber int
	if err := json.Unmarshal(raw, &asNumber); err == nil {
		return syncKind(asNumber)
	}

	var asObject struct {
		Change *int `json:"change"`
	}
	if err := json.Unmarshal(raw, &asObject); err == nil && asObject.Change != nil {
		return syncKind(*asObject.Change)
	}

	return syncFull
}

// providerEnabled handles a provider field as a bare bool or as a
// present (non-null) object, either of which mean the feature is on.
func providerEnabled(raw json.RawMessage) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}

	var asBool bool
	if err := json.Unmarshal(raw, &asBool); err == nil {
		return asBool
	}

	// Any other JSON value present (an options object) means enabled.
	return true
}
