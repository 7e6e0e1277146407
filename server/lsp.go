package server

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/luakit/bridge"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "luakit-lsp"

var luaKeywords = []string{
	"and", "break", "do", "else", "elseif", "end", "false", "for",
	"function", "goto", "if", "in", "local", "nil", "not", "or",
	"repeat", "return", "then", "true", "until", "while",
}

// LspServer bridges LSP editor features to a Lua session via its Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. factory creates the session whose host
// functions are offered for completion and hover; nil means a plain
// bridge.New session.
func NewLSP(factory SessionFactory) (*LspServer, error) {
	if factory == nil {
		factory = func() (*bridge.Session, error) { return bridge.New() }
	}
	worker, err := NewWorker(factory)
	if err != nil {
		return nil, err
	}
	s := &LspServer{
		worker:  worker,
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s, nil
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	defer s.worker.Stop()
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "luakit LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	hostFuncs, err := s.hostFunctions()
	if err != nil {
		return nil, err
	}
	return complete(prefix, hostFuncs), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	hostFuncs, err := s.hostFunctions()
	if err != nil {
		return nil, nil
	}
	return hover(word, hostFuncs), nil
}

// hostFunctions returns the sorted names registered in the LSP's session.
func (s *LspServer) hostFunctions() ([]string, error) {
	result, err := s.worker.Do(func(bs *bridge.Session) (interface{}, error) {
		return bs.Registered(), nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func complete(prefix string, hostFuncs []string) []protocol.CompletionItem {
	var items []protocol.CompletionItem

	add := func(name, detail string, kind protocol.CompletionItemKind) {
		if !strings.HasPrefix(name, prefix) {
			return
		}
		nameCopy := name
		detailCopy := detail
		kindCopy := kind
		items = append(items, protocol.CompletionItem{
			Label:      name,
			Kind:       &kindCopy,
			Detail:     &detailCopy,
			InsertText: &nameCopy,
		})
	}

	for _, name := range hostFuncs {
		add(name, "host function", protocol.CompletionItemKindFunction)
	}
	for _, kw := range luaKeywords {
		add(kw, "keyword", protocol.CompletionItemKindKeyword)
	}

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func hover(word string, hostFuncs []string) *protocol.Hover {
	var md string
	if i := sort.SearchStrings(hostFuncs, word); i < len(hostFuncs) && hostFuncs[i] == word {
		md = "**" + word + "**\n\nhost function"
	} else if isKeyword(word) {
		md = "**" + word + "**\n\nLua keyword"
	} else {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: md,
		},
	}
}

func isKeyword(word string) bool {
	for _, kw := range luaKeywords {
		if kw == word {
			return true
		}
	}
	return false
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diagnostics, err := s.diagnose(string(uri), text)
	if err != nil {
		log.Warningf("checking %s: %v", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose compiles text and returns at most one diagnostic for its first
// syntax error.
func (s *LspServer) diagnose(chunkName, text string) ([]protocol.Diagnostic, error) {
	_, err := s.worker.Do(func(bs *bridge.Session) (interface{}, error) {
		return nil, bs.Check(text, chunkName)
	})
	if err == nil {
		return []protocol.Diagnostic{}, nil
	}
	if !errors.Is(err, bridge.ErrLoad) {
		return nil, err
	}

	line, msg := parseLoadError(err)
	if line > 0 {
		line-- // LSP lines are zero-based
	}
	severity := protocol.DiagnosticSeverityError
	source := lspName
	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(line), Character: 0},
			End:   protocol.Position{Line: protocol.UInteger(line), Character: 0},
		},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}}, nil
}

var loadErrorLine = regexp.MustCompile(`:(\d+): `)

// parseLoadError extracts the one-based line and the bare message from a
// Lua compile error of the form "chunk:LINE: message". The line is 0 when
// the message carries none.
func parseLoadError(err error) (int, string) {
	msg := err.Error()
	var be *bridge.Error
	if errors.As(err, &be) && be.Err != nil {
		msg = be.Err.Error()
	}
	loc := loadErrorLine.FindStringSubmatchIndex(msg)
	if loc == nil {
		return 0, msg
	}
	line, convErr := strconv.Atoi(msg[loc[2]:loc[3]])
	if convErr != nil {
		return 0, msg
	}
	return line, msg[loc[1]:]
}

// --- Text extraction helpers ---

// extractPrefix returns the identifier fragment before the cursor for
// completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isIdentByte(b byte) bool {
	ch := rune(b)
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
