package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
)

const (
	// DefaultTimeout bounds one request, connection setup included.
	DefaultTimeout = 15 * time.Second

	maxBodyBytes = 1 << 20
)

// Response is a completed HTTP exchange. The status is not interpreted.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client performs a single GET. An error means no response was received.
type Client interface {
	Get(ctx context.Context, url string) (*Response, error)
}

// HTTPClient is a Client backed by net/http.
type HTTPClient struct {
	client *http.Client
}

// New wraps an existing http.Client.
func New(client *http.Client) *HTTPClient {
	return &HTTPClient{client: client}
}

func (c *HTTPClient) Get(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Annotatef(err, "building request for %s", url)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Annotatef(err, "requesting %s", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Annotatef(err, "reading response from %s", url)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// EndpointURL returns the credentials URL for roleAlias on endpoint. A bare
// host gets the https scheme.
func EndpointURL(endpoint, roleAlias string) string {
	base := strings.TrimRight(endpoint, "/")
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return fmt.Sprintf("%s/role-aliases/%s/credentials", base, url.PathEscape(roleAlias))
}
