package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const maxDifficulty = 64

type Config struct {
	Node      NodeConfig
	Consensus ConsensusConfig
	Network   NetworkConfig
	API       APIConfig
	Log       LogConfig
}

type NodeConfig struct {
	ID          string
	Difficulty  uint32
	MineTimeout time.Duration // 0 = unbounded
}

type ConsensusConfig struct {
	Interval time.Duration // 0 disables the background loop
}

type NetworkConfig struct {
	Peers       []string
	PeerTimeout time.Duration
}

type APIConfig struct {
	ListenAddr     string
	APIKey         string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	SubmitRate     float64 // mined blocks/sec per client
	SubmitBurst    float64
}

type LogConfig struct {
	Level  string // debug|info|warn|error
	Format string // json|text
}

type SimConfig struct {
	Difficulty uint32
	Timeout    time.Duration
	Log        LogConfig
}

func Default() Config {
	return Config{
		Node: NodeConfig{
			ID:          "node-1",
			Difficulty:  4,
			MineTimeout: 2 * time.Minute,
		},
		Consensus: ConsensusConfig{
			Interval: 30 * time.Second,
		},
		Network: NetworkConfig{
			Peers:       []string{},
			PeerTimeout: 7 * time.Second,
		},
		API: APIConfig{
			ListenAddr:     "127.0.0.1:8080",
			AllowedOrigins: []string{},
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   3 * time.Minute,
			IdleTimeout:    60 * time.Second,
			SubmitRate:     1,
			SubmitBurst:    5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func DefaultSim() SimConfig {
	return SimConfig{
		Difficulty: 4,
		Timeout:    5 * time.Minute,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

type Parsed struct {
	Config Config
}

func ParseNodeFlags(args []string) (Parsed, error) {
	return parseNodeFlags(args, os.Stdout)
}

func parseNodeFlags(args []string, out io.Writer) (Parsed, error) {
	cfg := Default()

	fs := flag.NewFlagSet("powmesh-node", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		nodeID      = fs.String("node.id", envOr("POWMESH_NODE_ID", cfg.Node.ID), "Node identifier used in logs and status")
		difficulty  = fs.Uint("chain.difficulty", uint(envOrInt("POWMESH_DIFFICULTY", int(cfg.Node.Difficulty))), "Leading hex zeros required in a block hash (0-64)")
		mineTimeout = fs.Duration("mine.timeout", envOrDuration("POWMESH_MINE_TIMEOUT", cfg.Node.MineTimeout), "Upper bound for mining one block (0 = none)")

		interval = fs.Duration("consensus.interval", envOrDuration("POWMESH_CONSENSUS_INTERVAL", cfg.Consensus.Interval), "Background consensus interval (0 = disabled)")

		peers       = fs.String("p2p.peers", envOr("POWMESH_PEERS", ""), "Comma-separated peer API URLs (http://host:port,...)")
		peerTimeout = fs.Duration("p2p.timeout", envOrDuration("POWMESH_PEER_TIMEOUT", cfg.Network.PeerTimeout), "Timeout for fetching a peer's chain")

		apiListen   = fs.String("api.listen", envOr("POWMESH_API_LISTEN", cfg.API.ListenAddr), "HTTP API listen address (ip:port)")
		apiKey      = fs.String("api.key", envOr("POWMESH_API_KEY", ""), "API key required for POST routes (optional)")
		apiOrigins  = fs.String("api.origins", envOr("POWMESH_API_ORIGINS", ""), "Comma-separated CORS origins")
		apiWrite    = fs.Duration("api.writeTimeout", envOrDuration("POWMESH_API_WRITE_TIMEOUT", cfg.API.WriteTimeout), "HTTP write timeout; must exceed mine.timeout")
		submitRate  = fs.Float64("api.rate", envOrFloat("POWMESH_API_RATE", cfg.API.SubmitRate), "Block submissions per second per client")
		submitBurst = fs.Float64("api.burst", envOrFloat("POWMESH_API_BURST", cfg.API.SubmitBurst), "Block submission burst per client")

		logLevel  = fs.String("log.level", envOr("POWMESH_LOG_LEVEL", cfg.Log.Level), "Log level: debug|info|warn|error")
		logFormat = fs.String("log.format", envOr("POWMESH_LOG_FORMAT", cfg.Log.Format), "Log format: json|text")
	)

	if err := fs.Parse(args); err != nil {
		return Parsed{}, err
	}

	cfg.Node.ID = strings.TrimSpace(*nodeID)
	if *difficulty > maxDifficulty {
		return Parsed{}, fmt.Errorf("chain.difficulty out of range: %d", *difficulty)
	}
	cfg.Node.Difficulty = uint32(*difficulty)
	cfg.Node.MineTimeout = *mineTimeout
	cfg.Consensus.Interval = *interval
	cfg.Network.PeerTimeout = *peerTimeout
	if p := strings.TrimSpace(*peers); p != "" {
		cfg.Network.Peers = splitCSV(p)
	}

	cfg.API.ListenAddr = strings.TrimSpace(*apiListen)
	cfg.API.APIKey = strings.TrimSpace(*apiKey)
	if o := strings.TrimSpace(*apiOrigins); o != "" {
		cfg.API.AllowedOrigins = splitCSV(o)
	}
	cfg.API.WriteTimeout = *apiWrite
	cfg.API.SubmitRate = *submitRate
	cfg.API.SubmitBurst = *submitBurst

	cfg.Log.Level = strings.TrimSpace(*logLevel)
	cfg.Log.Format = strings.TrimSpace(*logFormat)

	if err := validate(cfg); err != nil {
		return Parsed{}, err
	}
	return Parsed{Config: cfg}, nil
}

func ParseSimFlags(args []string) (SimConfig, error) {
	return parseSimFlags(args, os.Stdout)
}

func parseSimFlags(args []string, out io.Writer) (SimConfig, error) {
	cfg := DefaultSim()

	fs := flag.NewFlagSet("powmesh-sim", flag.ContinueOnError)
	fs.SetOutput(out)

	var (
		difficulty = fs.Uint("sim.difficulty", uint(envOrInt("POWMESH_SIM_DIFFICULTY", int(cfg.Difficulty))), "Mining difficulty for every node")
		timeout    = fs.Duration("sim.timeout", envOrDuration("POWMESH_SIM_TIMEOUT", cfg.Timeout), "Abort the run after this long (0 = none)")
		logLevel   = fs.String("log.level", envOr("POWMESH_LOG_LEVEL", cfg.Log.Level), "Log level: debug|info|warn|error")
		logFormat  = fs.String("log.format", envOr("POWMESH_LOG_FORMAT", cfg.Log.Format), "Log format: json|text")
	)

	if err := fs.Parse(args); err != nil {
		return SimConfig{}, err
	}
	if *difficulty > maxDifficulty {
		return SimConfig{}, fmt.Errorf("sim.difficulty out of range: %d", *difficulty)
	}
	cfg.Difficulty = uint32(*difficulty)
	if *timeout < 0 {
		return SimConfig{}, errors.New("sim.timeout must not be negative")
	}
	cfg.Timeout = *timeout
	cfg.Log.Level = strings.TrimSpace(*logLevel)
	cfg.Log.Format = strings.TrimSpace(*logFormat)

	if err := validateLog(cfg.Log); err != nil {
		return SimConfig{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if cfg.Node.ID == "" {
		return errors.New("node.id must not be empty")
	}
	if cfg.Node.MineTimeout < 0 {
		return errors.New("mine.timeout must not be negative")
	}
	if cfg.Consensus.Interval < 0 {
		return errors.New("consensus.interval must not be negative")
	}
	if cfg.Network.PeerTimeout <= 0 {
		return errors.New("p2p.timeout must be positive")
	}
	if cfg.API.ListenAddr == "" {
		return errors.New("api.listen must not be empty")
	}
	if cfg.API.WriteTimeout < 0 {
		return errors.New("api.writeTimeout must not be negative")
	}
	if cfg.API.WriteTimeout > 0 && (cfg.Node.MineTimeout == 0 || cfg.Node.MineTimeout >= cfg.API.WriteTimeout) {
		return fmt.Errorf("api.writeTimeout (%s) must exceed mine.timeout (%s)", cfg.API.WriteTimeout, cfg.Node.MineTimeout)
	}
	if cfg.API.SubmitRate <= 0 {
		return fmt.Errorf("api.rate must be positive: %v", cfg.API.SubmitRate)
	}
	if cfg.API.SubmitBurst < 1 {
		return fmt.Errorf("api.burst must be at least 1: %v", cfg.API.SubmitBurst)
	}
	return validateLog(cfg.Log)
}

func validateLog(l LogConfig) error {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", l.Level)
	}

	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format: %q", l.Format)
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envOrInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envOrDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		t := strings.TrimSpace(r)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
