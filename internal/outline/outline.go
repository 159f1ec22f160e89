// Package outline adapts the go-org parser to the flat node list the
// importer walks.
//
// Only the two structural levels are surfaced: level-1 headlines (units)
// and level-2 headlines (points). Anything deeper is rendered back to org
// text and folded into the body of the enclosing node, so a point keeps its
// sub-sections verbatim.
package outline

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/niklasfasching/go-org/org"
)

// MaxLevel is the deepest headline level surfaced as a Node.
const MaxLevel = 2

// defaultKeywords are recognised even when the store defines no states.
var defaultKeywords = []string{"TODO", "DONE"}

// Node is one headline of the outline.
type Node struct {
	Level      int
	Heading    string
	Tags       []string
	Body       string
	Properties map[string]string // keys upper-cased
	Todo       string
	Parent     *Node
}

// IsRoot reports whether n is the document root sentinel.
func (n *Node) IsRoot() bool {
	return n.Level == 0
}

// Property returns a drawer property. Keys are matched case-insensitively.
func (n *Node) Property(key string) (string, bool) {
	v, ok := n.Properties[strings.ToUpper(key)]
	return v, ok
}

// Document is a parsed outline. Nodes lists every surfaced headline in
// document order; each one's Parent chain ends at Root.
type Document struct {
	Path  string
	Root  *Node
	Nodes []*Node
}

// Parser turns org text into a Document.
type Parser struct {
	// TodoKeywords are the words recognised as a TODO prefix on a headline,
	// in addition to TODO and DONE. An in-buffer #+TODO: line overrides them.
	TodoKeywords []string

	log *slog.Logger
}

// NewParser creates a parser recognising the given TODO keywords.
// If logger is nil, parser warnings are discarded.
func NewParser(todoKeywords []string, logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{TodoKeywords: todoKeywords, log: logger}
}

// ParseFile reads and parses the file at path.
func (p *Parser) ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open outline: %w", err)
	}
	defer f.Close()
	return p.Parse(f, path)
}

// ParseString parses org text held in memory.
func (p *Parser) ParseString(text string) (*Document, error) {
	return p.Parse(strings.NewReader(text), "")
}

// Parse parses org text read from r. path is only used for messages and
// relative includes.
func (p *Parser) Parse(r io.Reader, path string) (*Document, error) {
	conf := org.New()
	conf.DefaultSettings["TODO"] = strings.Join(p.keywords(), " ")
	conf.Log = log.New(slogWriter{p.log}, "", 0)

	parsed := conf.Parse(r, path)
	if parsed.Error != nil {
		return nil, fmt.Errorf("failed to parse outline %s: %w", path, parsed.Error)
	}

	doc := &Document{Path: path, Root: &Node{}}
	doc.walk(parsed.Nodes, doc.Root)
	return doc, nil
}

// keywords returns the configured keywords plus their upper-case forms,
// without duplicates. The org lexer matches keywords case-sensitively.
func (p *Parser) keywords() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" || strings.ContainsAny(k, " \t|") || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}
	for _, k := range defaultKeywords {
		add(k)
	}
	for _, k := range p.TodoKeywords {
		add(k)
		add(strings.ToUpper(k))
	}
	return out
}

func (d *Document) walk(nodes []org.Node, parent *Node) {
	for _, n := range nodes {
		h, ok := asHeadline(n)
		if !ok || h.Lvl > MaxLevel {
			continue
		}

		node := &Node{
			Level:      h.Lvl,
			Heading:    strings.TrimSpace(org.String(h.Title...)),
			Tags:       h.Tags,
			Body:       body(h.Children),
			Properties: properties(h.Properties),
			Todo:       h.Status,
			Parent:     parent,
		}
		d.Nodes = append(d.Nodes, node)
		d.walk(h.Children, node)
	}
}

// body renders the children of a headline, minus the headlines that are
// surfaced as nodes of their own.
func body(children []org.Node) string {
	var kept []org.Node
	for _, c := range children {
		if h, ok := asHeadline(c); ok && h.Lvl <= MaxLevel {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.TrimSpace(org.String(kept...))
}

func properties(drawer *org.PropertyDrawer) map[string]string {
	props := make(map[string]string)
	if drawer == nil {
		return props
	}
	for _, kv := range drawer.Properties {
		if len(kv) < 2 {
			continue
		}
		props[strings.ToUpper(kv[0])] = kv[1]
	}
	return props
}

func asHeadline(n org.Node) (org.Headline, bool) {
	switch h := n.(type) {
	case org.Headline:
		return h, true
	case *org.Headline:
		if h != nil {
			return *h, true
		}
	}
	return org.Headline{}, false
}

// slogWriter routes go-org's *log.Logger warnings into slog.
type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	w.log.Warn("outline parser", "msg", strings.TrimSpace(string(p)))
	return len(p), nil
}
