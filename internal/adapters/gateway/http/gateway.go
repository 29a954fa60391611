// Package http reads uploaded content from a subdomain gateway
// (scheme://<cid>.<host>/<path>) and serves the same layout for the dev
// network.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("gateway")

const (
	DefaultCacheSize = 256
	maxBodyBytes     = 16 << 20
	defaultTimeout   = 30 * time.Second
)

type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.client = client }
}

func WithCacheSize(size int) Option {
	return func(g *Gateway) { g.cacheSize = size }
}

// WithDialAddress sends every request to addr regardless of the host in
// the URL. It lets wildcard subdomains resolve to a local dev server.
func WithDialAddress(addr string) Option {
	return func(g *Gateway) { g.dialAddr = addr }
}

// Gateway fetches content by address. Content is immutable, so successful
// reads are cached by address and path.
type Gateway struct {
	scheme    string
	host      string
	dialAddr  string
	cacheSize int
	client    *http.Client
	cache     *lru.Cache[string, []byte]
}

var _ ports.Gateway = (*Gateway)(nil)

func New(scheme string, host string, opts ...Option) (*Gateway, error) {
	if scheme == "" {
		scheme = "https"
	}
	if host == "" {
		host = domain.DefaultGatewayHost
	}

	g := &Gateway{
		scheme:    scheme,
		host:      strings.TrimPrefix(host, "."),
		cacheSize: DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.client == nil {
		g.client = newHTTPClient(g.dialAddr)
	}

	cache, err := lru.New[string, []byte](g.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create gateway cache: %w", err)
	}
	g.cache = cache

	return g, nil
}

func newHTTPClient(dialAddr string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if dialAddr != "" {
		dialer := &net.Dialer{Timeout: 10 * time.Second}
		transport.DialContext = func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, dialAddr)
		}
	}

	return &http.Client{Transport: transport, Timeout: defaultTimeout}
}

func (g *Gateway) URL(root cid.Cid) string {
	return domain.GatewayURLWithScheme(g.scheme, root.String(), g.host)
}

// Fetch returns the content at path inside root, or root itself when path
// is empty. A missing address or path is domain.ErrNotFound.
func (g *Gateway) Fetch(ctx context.Context, root cid.Cid, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path = strings.TrimPrefix(path, "/")
	key := root.String() + "/" + path
	if data, ok := g.cache.Get(key); ok {
		return append([]byte(nil), data...), nil
	}

	target := g.URL(root) + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build gateway request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch %s: %w", target, domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("read %s: body exceeds %d bytes", target, maxBodyBytes)
	}

	g.cache.Add(key, data)
	log.Debugw("fetched", "url", target, "bytes", len(data))

	return append([]byte(nil), data...), nil
}

// Fetcher is the read side a gateway handler serves from.
type Fetcher interface {
	Fetch(ctx context.Context, root cid.Cid, path string) ([]byte, error)
}

// Handler serves content for requests addressed to <cid>.<host>.
func Handler(fetcher Fetcher, host string) http.Handler {
	suffix := "." + strings.TrimPrefix(host, ".")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		requestHost := r.Host
		if h, _, err := net.SplitHostPort(requestHost); err == nil {
			requestHost = h
		}
		label, ok := strings.CutSuffix(requestHost, suffix)
		if !ok || label == "" || strings.Contains(label, ".") {
			http.Error(w, "unknown gateway host", http.StatusBadRequest)
			return
		}

		root, err := cid.Parse(label)
		if err != nil {
			http.Error(w, "invalid content address", http.StatusBadRequest)
			return
		}

		data, err := fetcher.Fetch(r.Context(), root, strings.TrimPrefix(r.URL.Path, "/"))
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
			return
		case err != nil:
			log.Warnw("serve content", "root", root, "path", r.URL.Path, "error", err)
			http.Error(w, "fetch failed", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Cache-Control", "public, max-age=29030400, immutable")
		_, _ = w.Write(data)
	})
}
