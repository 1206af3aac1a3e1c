package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/VeltarosLabs/powmesh/internal/api"
	"github.com/VeltarosLabs/powmesh/internal/config"
	"github.com/VeltarosLabs/powmesh/internal/logging"
	"github.com/VeltarosLabs/powmesh/internal/node"
	"github.com/VeltarosLabs/powmesh/internal/p2p"
	"github.com/VeltarosLabs/powmesh/pkg/version"
)

func main() {
	parsed, err := config.ParseNodeFlags(os.Args[1:])
	if err != nil {
		os.Exit(exitWithError(err))
	}
	cfg := parsed.Config

	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	log.Info("starting node", "id", cfg.Node.ID, "difficulty", cfg.Node.Difficulty, "version", version.Get().Version)

	n, err := node.New(node.Config{ID: cfg.Node.ID, Difficulty: cfg.Node.Difficulty}, log)
	if err != nil {
		os.Exit(exitWithError(err))
	}

	dial := peerDialer(cfg)
	for _, addr := range cfg.Network.Peers {
		peer, err := dial(addr)
		if err != nil {
			os.Exit(exitWithError(err))
		}
		n.AddRemotePeer(peer)
	}

	srv, err := api.NewServer(api.Config{
		ListenAddr:     cfg.API.ListenAddr,
		APIKey:         cfg.API.APIKey,
		AllowedOrigins: cfg.API.AllowedOrigins,
		ReadTimeout:    cfg.API.ReadTimeout,
		WriteTimeout:   cfg.API.WriteTimeout,
		IdleTimeout:    cfg.API.IdleTimeout,
		MineTimeout:    cfg.Node.MineTimeout,
		SubmitRate:     cfg.API.SubmitRate,
		SubmitBurst:    cfg.API.SubmitBurst,
	}, n, dial, log)
	if err != nil {
		os.Exit(exitWithError(err))
	}
	if err := srv.Start(); err != nil {
		os.Exit(exitWithError(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Consensus.Interval > 0 {
		go consensusLoop(ctx, log, n, cfg.Consensus.Interval)
	}

	waitForShutdown(log)
	cancel()

	sctx, scancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	log.Info("shutdown complete", "length", n.Chain().Len(), "tip", n.Chain().Tip().Hash)
}

// Peers only serve GET /chain, which needs no API key.
func peerDialer(cfg config.Config) api.PeerDialer {
	return func(url string) (node.Peer, error) {
		p, err := p2p.NewHTTPPeer(url, cfg.Network.PeerTimeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

func consensusLoop(ctx context.Context, log *slog.Logger, n *node.Node, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			out, err := n.Consensus(ctx)
			if err != nil {
				return
			}
			log.Debug("consensus round",
				"adopted", out.Adopted,
				"source", out.Source,
				"length", out.Length,
				"examined", out.Examined,
				"invalid", out.Invalid,
				"unreachable", out.Unreachable,
			)
		}
	}
}

func waitForShutdown(log *slog.Logger) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info("shutdown signal received", "signal", s.String())
}

func exitWithError(err error) int {
	_, _ = os.Stderr.WriteString("powmesh-node error: " + err.Error() + "\n")
	return 1
}
