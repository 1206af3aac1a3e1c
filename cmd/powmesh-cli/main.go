package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/VeltarosLabs/powmesh/internal/blockchain"
	"github.com/VeltarosLabs/powmesh/internal/p2p"
	"github.com/VeltarosLabs/powmesh/pkg/api"
	"github.com/VeltarosLabs/powmesh/pkg/version"
)

const defaultNode = "http://127.0.0.1:8080"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "version":
		runVersion()
	case "status":
		runStatus(os.Args[2:])
	case "chain":
		runChain(os.Args[2:])
	case "valid":
		runValid(os.Args[2:])
	case "submit":
		runSubmit(os.Args[2:])
	case "consensus":
		runConsensus(os.Args[2:])
	case "peers":
		runPeers(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Print(`powmesh CLI

Usage:
  powmesh-cli version
  powmesh-cli status    [--node <url>]
  powmesh-cli chain     [--node <url>]
  powmesh-cli valid     [--node <url>]
  powmesh-cli submit    [--node <url>] [--key <api key>] --tx sender:recipient:amount [--tx ...]
  powmesh-cli consensus [--node <url>] [--key <api key>]
  powmesh-cli peers     [--node <url>]
  powmesh-cli peers add [--node <url>] [--key <api key>] --url <peer url>

Notes:
  - --node defaults to $POWMESH_NODE or http://127.0.0.1:8080.
  - submit blocks until the node has mined the block.
`)
}

type txList []blockchain.Transaction

func (l *txList) String() string { return fmt.Sprint(*l) }

func (l *txList) Set(s string) error {
	tx, err := blockchain.ParseTransaction(s)
	if err != nil {
		return err
	}
	*l = append(*l, tx)
	return nil
}

type common struct {
	node    *string
	key     *string
	timeout *time.Duration
}

func commonFlags(fs *flag.FlagSet) common {
	def := strings.TrimSpace(os.Getenv("POWMESH_NODE"))
	if def == "" {
		def = defaultNode
	}
	return common{
		node:    fs.String("node", def, "Node API base URL"),
		key:     fs.String("key", os.Getenv("POWMESH_API_KEY"), "API key for POST routes"),
		timeout: fs.Duration("timeout", 5*time.Minute, "Request timeout"),
	}
}

func (c common) client() (*api.Client, context.Context, context.CancelFunc) {
	cl, err := api.New(*c.node, api.WithAPIKey(*c.key), api.WithTimeout(*c.timeout))
	if err != nil {
		fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *c.timeout)
	return cl, ctx, cancel
}

func runVersion() {
	v := version.Get()
	fmt.Printf("powmesh CLI\nVersion: %s\nCommit:  %s\nGo:      %s\nTarget:  %s\n",
		v.Version, v.Commit, v.GoVersion, v.Platform)
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	c := commonFlags(fs)
	_ = fs.Parse(args)

	cl, ctx, cancel := c.client()
	defer cancel()
	st, err := cl.Status(ctx)
	if err != nil {
		fatal(err)
	}
	printJSON(st)
}

func runChain(args []string) {
	fs := flag.NewFlagSet("chain", flag.ExitOnError)
	c := commonFlags(fs)
	_ = fs.Parse(args)

	cl, ctx, cancel := c.client()
	defer cancel()
	ch, err := cl.Chain(ctx)
	if err != nil {
		fatal(err)
	}
	printJSON(ch)
}

// runValid asks the node for its own verdict and also recomputes it locally
// from the fetched blocks.
func runValid(args []string) {
	fs := flag.NewFlagSet("valid", flag.ExitOnError)
	c := commonFlags(fs)
	_ = fs.Parse(args)

	cl, ctx, cancel := c.client()
	defer cancel()
	remote, err := cl.Valid(ctx)
	if err != nil {
		fatal(err)
	}
	ch, err := cl.Chain(ctx)
	if err != nil {
		fatal(err)
	}
	localErr := blockchain.Validate(p2p.FromWireChain(ch).Blocks)

	fmt.Printf("node says: %t\n", remote.Valid)
	if localErr != nil {
		fmt.Printf("recomputed: false (%v)\n", localErr)
		os.Exit(1)
	}
	fmt.Println("recomputed: true")
	if !remote.Valid {
		os.Exit(1)
	}
}

func runSubmit(args []string) {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	c := commonFlags(fs)
	var txs txList
	fs.Var(&txs, "tx", "Transaction as sender:recipient:amount (repeatable)")
	_ = fs.Parse(args)

	if len(txs) == 0 {
		fatal(errors.New("at least one --tx is required"))
	}

	cl, ctx, cancel := c.client()
	defer cancel()
	b, err := cl.SubmitBlock(ctx, p2p.ToWireTransactions(txs))
	if err != nil {
		fatal(err)
	}
	printJSON(b)
}

func runConsensus(args []string) {
	fs := flag.NewFlagSet("consensus", flag.ExitOnError)
	c := commonFlags(fs)
	_ = fs.Parse(args)

	cl, ctx, cancel := c.client()
	defer cancel()
	out, err := cl.Consensus(ctx)
	if err != nil {
		fatal(err)
	}
	printJSON(out)
}

func runPeers(args []string) {
	if len(args) > 0 && args[0] == "add" {
		fs := flag.NewFlagSet("peers add", flag.ExitOnError)
		c := commonFlags(fs)
		peerURL := fs.String("url", "", "Peer API base URL")
		_ = fs.Parse(args[1:])

		if strings.TrimSpace(*peerURL) == "" {
			fatal(errors.New("--url is required"))
		}
		cl, ctx, cancel := c.client()
		defer cancel()
		out, err := cl.AddPeer(ctx, *peerURL)
		if err != nil {
			fatal(err)
		}
		printJSON(out)
		return
	}

	fs := flag.NewFlagSet("peers", flag.ExitOnError)
	c := commonFlags(fs)
	_ = fs.Parse(args)

	cl, ctx, cancel := c.client()
	defer cancel()
	out, err := cl.Peers(ctx)
	if err != nil {
		fatal(err)
	}
	printJSON(out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	_, _ = os.Stderr.WriteString("powmesh-cli error: " + err.Error() + "\n")
	os.Exit(1)
}
