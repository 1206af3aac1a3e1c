package main

import (
	"context"
	"os"

	"github.com/VeltarosLabs/powmesh/internal/config"
	"github.com/VeltarosLabs/powmesh/internal/logging"
	"github.com/VeltarosLabs/powmesh/internal/sim"
)

func main() {
	cfg, err := config.ParseSimFlags(os.Args[1:])
	if err != nil {
		os.Exit(exitWithError(err))
	}

	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	rep, err := sim.RunScenario(ctx, cfg.Difficulty, log)
	if err != nil {
		os.Exit(exitWithError(err))
	}
	log.Info("scenario finished", "difficulty", rep.Difficulty, "nodes", len(rep.Nodes), "converged", rep.Converged())
}

func exitWithError(err error) int {
	_, _ = os.Stderr.WriteString("powmesh-sim error: " + err.Error() + "\n")
	return 1
}
