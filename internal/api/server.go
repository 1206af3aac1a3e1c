package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/VeltarosLabs/powmesh/internal/blockchain"
	"github.com/VeltarosLabs/powmesh/internal/node"
	"github.com/VeltarosLabs/powmesh/internal/p2p"
	pubapi "github.com/VeltarosLabs/powmesh/pkg/api"
	"github.com/VeltarosLabs/powmesh/pkg/version"
)

const (
	maxBodyBytes          = 1 << 20
	DefaultMaxTxsPerBlock = 10_000
)

type Config struct {
	ListenAddr     string
	APIKey         string
	AllowedOrigins []string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MineTimeout bounds a single POST /blocks; 0 means only the client
	// disconnecting stops mining.
	MineTimeout    time.Duration
	SubmitRate     float64
	SubmitBurst    float64
	MaxTxsPerBlock int
}

// PeerDialer turns a peer URL into something consensus can query.
type PeerDialer func(url string) (node.Peer, error)

type Server struct {
	cfg       Config
	log       *slog.Logger
	node      *node.Node
	dial      PeerDialer
	limiter   *Limiter
	startedAt time.Time

	srv *http.Server
	ln  net.Listener
}

func NewServer(cfg Config, n *node.Node, dial PeerDialer, log *slog.Logger) (*Server, error) {
	if n == nil {
		return nil, errors.New("node is required")
	}
	if log == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.MaxTxsPerBlock <= 0 {
		cfg.MaxTxsPerBlock = DefaultMaxTxsPerBlock
	}
	if cfg.SubmitRate <= 0 {
		cfg.SubmitRate = 1
	}
	if cfg.SubmitBurst < 1 {
		cfg.SubmitBurst = 5
	}

	return &Server{
		cfg:       cfg,
		log:       log.With("component", "api"),
		node:      n,
		dial:      dial,
		limiter:   NewLimiter(cfg.SubmitRate, cfg.SubmitBurst, 1),
		startedAt: time.Now().UTC(),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/version", s.handleVersion)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/chain", s.handleChain)
	mux.HandleFunc("/valid", s.handleValid)
	mux.HandleFunc("/blocks", s.handleBlocks)
	mux.HandleFunc("/consensus", s.handleConsensus)
	mux.HandleFunc("/peers", s.handlePeers)

	return SecurityMiddleware(SecurityConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		APIKey:         s.cfg.APIKey,
		RequireKeyFor: map[string]bool{
			routeKey(http.MethodPost, "/blocks"):    true,
			routeKey(http.MethodPost, "/consensus"): true,
			routeKey(http.MethodPost, "/peers"):     true,
		},
	}, mux)
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
	}

	go func() {
		s.log.Info("api listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server error", "err", err)
		}
	}()
	return nil
}

func (s *Server) Addr() string {
	if s.ln == nil {
		return s.cfg.ListenAddr
	}
	return s.ln.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, pubapi.Health{
		OK:   true,
		Time: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	v := version.Get()
	writeJSON(w, http.StatusOK, pubapi.VersionInfo{
		Version:   v.Version,
		Commit:    v.Commit,
		GoVersion: v.GoVersion,
		Platform:  v.Platform,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	st := s.node.Status()
	writeJSON(w, http.StatusOK, pubapi.NodeStatus{
		NodeID:     st.ID,
		StartedAt:  s.startedAt.Format(time.RFC3339Nano),
		UptimeSec:  int64(time.Since(s.startedAt).Seconds()),
		Peers:      st.Peers,
		Length:     st.Length,
		TipHash:    st.TipHash,
		Difficulty: st.Difficulty,
		Valid:      st.Valid,
	})
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, p2p.ToWireChain(s.node.Chain().Snapshot()))
}

func (s *Server) handleValid(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	out := pubapi.Validity{Valid: true}
	if err := s.node.Chain().Validate(); err != nil {
		out.Valid = false
		out.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if !s.limiter.Allow(r) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	var req pubapi.SubmitRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Transactions) > s.cfg.MaxTxsPerBlock {
		writeError(w, http.StatusBadRequest, "too many transactions")
		return
	}

	ctx := r.Context()
	if s.cfg.MineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.MineTimeout)
		defer cancel()
	}

	b, err := s.node.AddBlock(ctx, p2p.FromWireTransactions(req.Transactions))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pubapi.SubmitResponse{OK: true, Block: p2p.ToWireBlock(b)})
	case errors.Is(err, blockchain.ErrMiningCanceled):
		writeError(w, http.StatusServiceUnavailable, "mining canceled")
	case errors.Is(err, blockchain.ErrStaleTip):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("add block failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleConsensus(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	out, err := s.node.Consensus(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pubapi.ConsensusResult{
		Adopted:     out.Adopted,
		Source:      out.Source,
		Length:      out.Length,
		Examined:    out.Examined,
		Invalid:     out.Invalid,
		Unreachable: out.Unreachable,
	})
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ids := s.node.PeerIDs()
		writeJSON(w, http.StatusOK, pubapi.PeerList{Count: len(ids), Peers: ids})

	case http.MethodPost:
		if s.dial == nil {
			writeError(w, http.StatusNotImplemented, "peer registration disabled")
			return
		}
		var req pubapi.AddPeerRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		peer, err := s.dial(strings.TrimSpace(req.URL))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		added := s.node.AddRemotePeer(peer)
		s.log.Info("peer registration", "peer", peer.ID(), "added", added)
		writeJSON(w, http.StatusOK, pubapi.AddPeerResponse{OK: true, Added: added, Peer: peer.ID()})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeBody(r *http.Request, out any) error {
	raw, err := readBodyLimited(r.Body, maxBodyBytes)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func readBodyLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) >= limit {
		return nil, errors.New("request too large")
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, pubapi.ErrorResponse{OK: false, Error: msg})
}
