package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// ErrFatalInput is an unreadable, binary or empty source document
var ErrFatalInput = errors.New("fatal input error")

// Document is a loaded source document
type Document struct {
	Name   string // file or URL base name
	Source string // path or URL as given
	Raw    []byte // bytes as loaded, persisted as the blob
	Text   string // plain text fed to the pipeline
}

// Loader reads documents from disk or over HTTP
type Loader struct {
	fetcher  *Fetcher
	maxBytes int64
}

// NewLoader creates a loader. A nil fetcher disables URL sources.
func NewLoader(fetcher *Fetcher, maxBytes int64) *Loader {
	return &Loader{fetcher: fetcher, maxBytes: maxBytes}
}

// Load reads source and converts it to plain text
func (l *Loader) Load(ctx context.Context, source string) (*Document, error) {
	if isURL(source) {
		if l.fetcher == nil {
			return nil, fmt.Errorf("%w: URL sources are disabled", ErrFatalInput)
		}
		res, err := l.fetcher.FetchWithRetry(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFatalInput, err)
		}
		return NewDocument(res.Name, source, res.Body, res.ContentType)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatalInput, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrFatalInput, source)
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFatalInput, source, l.maxBytes)
	}
	raw, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatalInput, err)
	}
	return NewDocument(filepath.Base(source), source, raw, "")
}

// NewDocument validates raw bytes and derives the plain text. HTML is
// recognised by extension, content type or sniffing and reduced to its
// visible text. PDFs and other binary input are rejected.
func NewDocument(name, source string, raw []byte, contentType string) (*Document, error) {
	if bytes.HasPrefix(raw, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: %s is a PDF; extract its text first", ErrFatalInput, name)
	}
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s is not UTF-8 text", ErrFatalInput, name)
	}

	text := string(raw)
	if isHTML(name, contentType, raw) {
		visible, err := VisibleText(text)
		if err != nil {
			return nil, fmt.Errorf("%w: parse HTML: %w", ErrFatalInput, err)
		}
		text = visible
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %s has no text", ErrFatalInput, name)
	}

	return &Document{Name: name, Source: source, Raw: raw, Text: text}, nil
}

func isHTML(name, contentType string, raw []byte) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return true
	case ".txt", ".md":
		return false
	}
	if contentType != "" {
		return strings.Contains(strings.ToLower(contentType), "html")
	}
	return strings.HasPrefix(http.DetectContentType(raw), "text/html")
}

// blockElements end a line of visible text
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "ul": true, "ol": true, "dt": true, "dd": true,
	"header": true, "footer": true, "blockquote": true, "pre": true,
}

// VisibleText renders the text a reader would see, one block per line.
// List items are prefixed with a bullet so the rule engine sees item starts.
func VisibleText(src string) (string, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var line []string
	endLine := func() {
		if len(line) == 1 && line[0] == "-" {
			line = line[:0]
		}
		if len(line) > 0 {
			buf.WriteString(strings.Join(line, " "))
			buf.WriteByte('\n')
			line = line[:0]
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "head", "nav", "svg":
				return
			}
			if blockElements[n.Data] {
				endLine()
				if n.Data == "li" {
					line = append(line, "-")
				}
			}
		}

		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				line = append(line, text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockElements[n.Data] {
			endLine()
		}
	}

	walk(doc)
	endLine()
	return buf.String(), nil
}
