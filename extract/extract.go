// Package extract turns document handles into plain text.
//
// A Handle names a document and where to find it. Extractors resolve the
// handle and return normalised UTF-8 text. The Router dispatches a handle to
// the extractor registered for its source.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedSource is returned when no extractor handles a source.
	ErrUnsupportedSource = errors.New("unsupported document source")
	// ErrEmptyDocument is returned when a document contains no text.
	ErrEmptyDocument = errors.New("document is empty")
	// ErrTooLarge is returned when a document exceeds the configured size limit.
	ErrTooLarge = errors.New("document too large")
	// ErrNotText is returned for binary or non UTF-8 documents.
	ErrNotText = errors.New("document is not UTF-8 text")
	// ErrInvalidPDF is returned for PDF documents that cannot be parsed.
	ErrInvalidPDF = errors.New("invalid PDF document")
)

// Source identifies where a document is read from.
type Source string

const (
	// SourceFile reads from the local filesystem.
	SourceFile Source = "file"
	// SourceBytes carries the document content in the handle.
	SourceBytes Source = "bytes"
	// SourceSSH reads from a remote host over SSH.
	SourceSSH Source = "ssh"
)

// Handle is an opaque reference to a document.
type Handle struct {
	Name   string `json:"name"`
	Source Source `json:"source"`
	// Location is the file path for SourceFile and host:path for SourceSSH.
	Location string `json:"location,omitempty"`
	Data     []byte `json:"-"`
}

// File returns a handle for a local file.
func File(p string) Handle {
	return Handle{Name: filepath.Base(p), Source: SourceFile, Location: p}
}

// Bytes returns a handle carrying the document content.
func Bytes(name string, data []byte) Handle {
	return Handle{Name: name, Source: SourceBytes, Data: data}
}

// Remote returns a handle for a file on an SSH host.
func Remote(host, p string) Handle {
	return Handle{Name: path.Base(p), Source: SourceSSH, Location: host + ":" + p}
}

// ParseRef parses a document reference as used on the command line and in
// config files. "ssh://host[:port]/path" refers to a remote file, anything
// else is a local path.
func ParseRef(ref string) (Handle, error) {
	if ref == "" {
		return Handle{}, fmt.Errorf("empty document reference")
	}
	rest, ok := strings.CutPrefix(ref, "ssh://")
	if !ok {
		return File(ref), nil
	}
	host, p, found := strings.Cut(rest, "/")
	if !found || host == "" || p == "" {
		return Handle{}, fmt.Errorf("invalid ssh reference %q: want ssh://host/path", ref)
	}
	return Remote(host, "/"+p), nil
}

// SplitRemote splits the Location of an SSH handle into host and path.
func (h Handle) SplitRemote() (host, p string, err error) {
	if h.Source != SourceSSH {
		return "", "", fmt.Errorf("%w: %q is not an ssh handle", ErrUnsupportedSource, h.Name)
	}
	host, p, ok := strings.Cut(h.Location, ":/")
	if !ok || host == "" {
		return "", "", fmt.Errorf("invalid ssh location %q", h.Location)
	}
	return host, "/" + p, nil
}

func (h Handle) String() string {
	switch h.Source {
	case SourceFile:
		return h.Location
	case SourceSSH:
		return "ssh://" + strings.Replace(h.Location, ":/", "/", 1)
	default:
		return h.Name
	}
}

// Extractor returns the text of a document.
type Extractor interface {
	Extract(ctx context.Context, h Handle) (string, error)
}

// Router dispatches handles to the extractor registered for their source.
type Router struct {
	routes map[Source]Extractor
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[Source]Extractor)}
}

// Handle registers e for source, replacing any previous registration.
func (r *Router) Handle(source Source, e Extractor) *Router {
	r.routes[source] = e
	return r
}

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, h Handle) (string, error) {
	e, ok := r.routes[h.Source]
	if !ok {
		return "", fmt.Errorf("%w: %q for %s", ErrUnsupportedSource, h.Source, h.Name)
	}
	return e.Extract(ctx, h)
}
