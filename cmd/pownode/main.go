// Command pownode runs one PoW mining node (C4): it wires together the key
// manager, ledger store, node registry and miner core behind node.Node, the
// way the teacher's cmd/kcn main.go wires its node.Node/accountManager
// stack behind urfave/cli flags.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/pbnjay/memory"
	"github.com/urfave/cli"

	"github.com/aurex-chain/aurex/chaintypes"
	"github.com/aurex-chain/aurex/config"
	"github.com/aurex-chain/aurex/cryptokeys"
	"github.com/aurex-chain/aurex/gatewaysvc"
	"github.com/aurex-chain/aurex/log"
	"github.com/aurex-chain/aurex/metrics"
	promexporter "github.com/aurex-chain/aurex/metrics/prometheus"
	"github.com/aurex-chain/aurex/node"
	"github.com/aurex-chain/aurex/storage/ledger"
	"github.com/aurex-chain/aurex/storage/registry"
)

var logger = log.NewModuleLogger(log.PowNode)

var configFlag = cli.StringFlag{
	Name:  "config",
	Value: "pownode.toml",
	Usage: "path to the node's TOML configuration file",
}

var portFlag = cli.IntFlag{
	Name:  "port",
	Usage: "override the configured listen port (useful for running several nodes from one config)",
}

var metricsAddrFlag = cli.StringFlag{
	Name:  "metrics-addr",
	Value: "",
	Usage: "if set, serve Prometheus metrics on this address (e.g. :9100)",
}

func main() {
	app := cli.NewApp()
	app.Name = "pownode"
	app.Usage = "aurex proof-of-work mining node"
	app.Flags = []cli.Flag{configFlag, portFlag, metricsAddrFlag}
	app.Action = runNode
	app.Commands = []cli.Command{ledgerCommand}

	if err := app.Run(os.Args); err != nil {
		logger.Crit("pownode exited with error", "err", err)
	}
}

func runNode(c *cli.Context) error {
	cfg, err := config.LoadNodeConfig(c.String("config"))
	if err != nil {
		return err
	}
	if port := c.Int("port"); port != 0 {
		cfg.Port = port
	}

	logger.Info("starting pownode", "available_memory_mb", memory.TotalMemory()/1024/1024)

	dataDir := filepath.Join(cfg.DataDir, fmt.Sprintf("node_%d", cfg.Port))
	nodeID, err := node.LoadOrCreateNodeID(dataDir)
	if err != nil {
		return err
	}

	keys, err := cryptokeys.Load(filepath.Join(dataDir, "priv.pem"), filepath.Join(dataDir, "pub.pem"))
	if err != nil {
		return err
	}

	ledgerStore, err := ledger.Open(cfg.DataDir, cfg.Port)
	if err != nil {
		return err
	}
	defer ledgerStore.Close()

	var reg *registry.Store
	if cfg.RegistryPath != "" {
		reg, err = registry.Open(cfg.RegistryPath, cfg.RedisAddr)
		if err != nil {
			logger.Warn("registry unavailable, continuing without peer bootstrap", "err", err)
		} else {
			defer reg.Close()
		}
	}

	confirm := gatewaysvc.NewClient(cfg.GatewayHost, cfg.GatewayPort)

	n := node.New(node.Config{
		NodeID:     nodeID,
		Host:       cfg.Host,
		Port:       cfg.Port,
		Difficulty: cfg.Difficulty,
		NodePorts:  cfg.NodePorts,
	}, keys, ledgerStore, reg, confirm)

	if err := n.Start(); err != nil {
		return err
	}
	defer n.Stop()

	if addr := c.String("metrics-addr"); addr != "" {
		exp := promexporter.NewExporter(addr, metrics.DefaultRegistry)
		exp.Start()
		go collectMetricsPeriodically(exp)
	}

	waitForSignal()
	logger.Info("pownode shutting down")
	return nil
}

func collectMetricsPeriodically(exp *promexporter.Exporter) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		exp.Collect()
	}
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

// ledgerCommand implements the "cmd/pownode ledger" supplemented feature: a
// pretty-printed dump of the last two blocks, with an optional
// snappy-compressed JSON export.
var ledgerCommand = cli.Command{
	Name:  "ledger",
	Usage: "print the tail of a node's ledger, optionally exporting a snapshot",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "config", Value: "pownode.toml"},
		cli.IntFlag{Name: "port"},
		cli.StringFlag{Name: "export", Usage: "write a snappy-compressed JSON snapshot to this path"},
	},
	Action: runLedgerDump,
}

func runLedgerDump(c *cli.Context) error {
	cfg, err := config.LoadNodeConfig(c.String("config"))
	if err != nil {
		return err
	}
	if port := c.Int("port"); port != 0 {
		cfg.Port = port
	}

	store, err := ledger.Open(cfg.DataDir, cfg.Port)
	if err != nil {
		return err
	}
	defer store.Close()

	blocks, err := store.RecentBlocks(2)
	if err != nil {
		return err
	}

	printLedgerTable(blocks)

	if export := c.String("export"); export != "" {
		return exportLedgerSnapshot(store, export)
	}
	return nil
}

func printLedgerTable(blocks []chaintypes.Block) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Hash", "Prev Hash", "Nonce", "Miner", "Signature OK", "Txs"})
	for _, b := range blocks {
		sigOK := cryptokeys.VerifySignature(b.PublicKeyPEM, b.CurrentHash, b.Signature)
		table.Append([]string{
			fmt.Sprintf("%d", b.Index),
			shortHash(b.CurrentHash),
			shortHash(b.PrevHash),
			fmt.Sprintf("%d", b.Nonce),
			b.MinerID,
			colorSignatureOK(sigOK),
			fmt.Sprintf("%d", len(b.Transactions)),
		})
	}
	table.Render()
}

func colorSignatureOK(ok bool) string {
	if ok {
		return color.GreenString("true")
	}
	return color.RedString("false")
}

func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12] + "…"
}
