package scripture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/theimaginaryfoundation/gita-moods/scripture/fileutils"
)

// Source serves read-only JSON documents by relative path.
// Implementations return ErrNotFound (possibly wrapped) for documents that do not exist.
type Source interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// maxDocumentBytes bounds a single document read; verse and catalog files are a few KB.
const maxDocumentBytes = 4 << 20

// HTTPSource fetches documents with GET relative to BaseURL.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource returns an HTTPSource using http.DefaultClient.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{BaseURL: baseURL, Client: http.DefaultClient}
}

func (s *HTTPSource) Get(ctx context.Context, path string) ([]byte, error) {
	u, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentBytes))
		return nil, fmt.Errorf("GET %s: %w", u, ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentBytes))
		return nil, fmt.Errorf("GET %s: unexpected status %d", u, resp.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %w", u, err)
	}
	return b, nil
}

func (s *HTTPSource) resolve(path string) (string, error) {
	if s.BaseURL == "" {
		return "", errors.New("HTTPSource: base URL is empty")
	}
	base, err := url.Parse(strings.TrimRight(s.BaseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("HTTPSource: parse base URL: %w", err)
	}
	ref, err := url.Parse(strings.TrimLeft(path, "/"))
	if err != nil {
		return "", fmt.Errorf("HTTPSource: parse path %q: %w", path, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// DirSource serves documents from a local directory tree.
// A path ending in "/" maps to the index.json file inside that directory.
type DirSource struct {
	Root string
}

func (s DirSource) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Root == "" {
		return nil, errors.New("DirSource: root is empty")
	}
	rel := path
	if rel == "" || strings.HasSuffix(rel, "/") {
		rel += "index.json"
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(rel, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("DirSource: path escapes root: %q", path)
	}

	full := filepath.Join(s.Root, clean)
	if !fileutils.FileExists(full) {
		return nil, fmt.Errorf("read %s: %w", full, ErrNotFound)
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", full, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", full, err)
	}
	return b, nil
}

// IsRemote reports whether location is an http(s) URL.
func IsRemote(location string) bool {
	l := strings.ToLower(location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// OpenSource returns an HTTPSource for http(s) URLs and a DirSource for anything else.
func OpenSource(location string, client *http.Client) Source {
	if IsRemote(location) {
		return &HTTPSource{BaseURL: location, Client: client}
	}
	return DirSource{Root: location}
}

// SplitLocation splits a document location into a Source root and the document path,
// e.g. "https://host/data/moods.json" -> ("https://host/data/", "moods.json").
func SplitLocation(location string) (root string, doc string) {
	if IsRemote(location) {
		i := strings.LastIndex(location, "/")
		if i < len("https://") {
			return location, ""
		}
		return location[:i+1], location[i+1:]
	}
	dir, file := filepath.Split(location)
	if dir == "" {
		dir = "."
	}
	return dir, file
}
