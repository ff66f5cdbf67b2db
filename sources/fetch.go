package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// Fetch opens location, which is an http(s) URL, a file:// URL or a local path.
// Any non-2xx response is an error.
func Fetch(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("empty source location")
	}

	u, e := url.Parse(location)
	if e != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// bare paths, including Windows drive letters
		return os.Open(location)
	}

	switch u.Scheme {
	case "file":
		return os.Open(u.Path)
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %s in %s", u.Scheme, location)
	}

	if client == nil {
		client = http.DefaultClient
	}

	var req *http.Request
	if req, e = http.NewRequestWithContext(ctx, http.MethodGet, location, nil); e != nil {
		return nil, e
	}

	var resp *http.Response
	if resp, e = client.Do(req); e != nil {
		return nil, fmt.Errorf("fetching %s: %w", location, e)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: %s", location, resp.Status)
	}

	return resp.Body, nil
}

// countingReader tallies bytes read for the fetch log line
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, e := c.r.Read(p)
	c.n += int64(n)

	return n, e
}
