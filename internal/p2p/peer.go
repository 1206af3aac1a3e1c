package p2p

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/VeltarosLabs/powmesh/internal/blockchain"
	"github.com/VeltarosLabs/powmesh/pkg/api"
)

const DefaultPeerTimeout = 7 * time.Second

var ErrMalformedSnapshot = errors.New("malformed chain snapshot")

// HTTPPeer reaches a remote node through its HTTP API. It satisfies
// node.Peer; an unreachable or misbehaving peer surfaces as an error.
type HTTPPeer struct {
	id      string
	client  *api.Client
	timeout time.Duration
}

func NewHTTPPeer(rawURL string, timeout time.Duration, opts ...api.Option) (*HTTPPeer, error) {
	addr, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultPeerTimeout
	}

	all := append([]api.Option{api.WithTimeout(timeout)}, opts...)
	cl, err := api.New(addr, all...)
	if err != nil {
		return nil, err
	}
	return &HTTPPeer{id: addr, client: cl, timeout: timeout}, nil
}

func (p *HTTPPeer) ID() string { return p.id }

func (p *HTTPPeer) Snapshot(ctx context.Context) ([]blockchain.Block, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	wire, err := p.client.Chain(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain from %s: %w", p.id, err)
	}
	snap := FromWireChain(wire)
	if !snap.Consistent() {
		return nil, fmt.Errorf("peer %s: %w", p.id, ErrMalformedSnapshot)
	}
	return snap.Blocks, nil
}

// NormalizeURL accepts "host:port" or a full http(s) URL and returns the
// canonical base URL used as the peer ID.
func NormalizeURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", errors.New("peer URL must not be empty")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid peer URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid peer URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid peer URL %q: missing host", raw)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/"), nil
}
