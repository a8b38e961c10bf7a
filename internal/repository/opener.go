package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	xhttp "MealSignal/pkg/http"
)

// ErrSourceNotFound is returned by an Opener when the file does not exist.
var ErrSourceNotFound = errors.New("source not found")

// Opener opens a participant file by its slash-separated relative path,
// e.g. "data_p7/HR_007.csv".
type Opener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirOpener reads files below a local directory.
type DirOpener struct {
	root string
}

func NewDirOpener(root string) *DirOpener {
	return &DirOpener{root: root}
}

func (o *DirOpener) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid source path %q", name)
	}
	f, err := os.Open(filepath.Join(o.root, filepath.FromSlash(name)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
		}
		return nil, err
	}
	return f, nil
}

// HTTPOpener fetches files relative to a base URL, the way the browser
// dashboard loads them from a static file server.
type HTTPOpener struct {
	base   *url.URL
	client *xhttp.Client
}

func NewHTTPOpener(baseURL string, client *xhttp.Client) (*HTTPOpener, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http(s), got %q", baseURL)
	}
	if client == nil {
		client = xhttp.NewClient()
	}
	return &HTTPOpener{base: u, client: client}, nil
}

func (o *HTTPOpener) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid source path %q", name)
	}
	u := *o.base
	u.Path = path.Join("/", strings.TrimSuffix(o.base.Path, "/"), name)

	body, err := o.client.Fetch(ctx, u.String())
	if err != nil {
		if errors.Is(err, xhttp.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
		}
		return nil, err
	}
	return body, nil
}
