// Command gateway runs the stateless fan-out/fan-in gateway (C5).
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pbnjay/memory"
	"github.com/urfave/cli"

	"github.com/aurex-chain/aurex/config"
	"github.com/aurex-chain/aurex/gatewaysvc"
	"github.com/aurex-chain/aurex/log"
	"github.com/aurex-chain/aurex/metrics"
	promexporter "github.com/aurex-chain/aurex/metrics/prometheus"
)

var logger = log.NewModuleLogger(log.Gateway)

func main() {
	app := cli.NewApp()
	app.Name = "gateway"
	app.Usage = "aurex purchase submission gateway"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Value: "gateway.toml"},
		cli.StringFlag{Name: "metrics-addr", Value: ""},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Crit("gateway exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadGatewayConfig(c.String("config"))
	if err != nil {
		return err
	}

	logger.Info("starting gateway", "available_memory_mb", memory.TotalMemory()/1024/1024)

	var confirmLedger gatewaysvc.ConfirmationLedger
	if cfg.LedgerDataDir != "" {
		sharedLedger, err := gatewaysvc.OpenSharedLedger(fmt.Sprintf("%s/gateway_confirmations.sqlite3", cfg.LedgerDataDir))
		if err != nil {
			logger.Warn("shared confirmation ledger unavailable", "err", err)
		} else {
			defer sharedLedger.Close()
			confirmLedger = sharedLedger
		}
	}

	gw := gatewaysvc.New(gatewaysvc.Config{
		Host:          cfg.Host,
		Port:          cfg.Port,
		NodeHost:      cfg.NodeHost,
		NodePorts:     cfg.NodePorts,
		AppServerHost: cfg.AppServerHost,
		AppServerPort: cfg.AppServerPort,
		FanoutTimeout: time.Duration(cfg.FanoutTimeoutSeconds) * time.Second,
	}, confirmLedger)

	if err := gw.Start(); err != nil {
		return err
	}
	defer gw.Stop()

	if addr := c.String("metrics-addr"); addr != "" {
		exp := promexporter.NewExporter(addr, metrics.DefaultRegistry)
		exp.Start()
	}

	waitForSignal()
	logger.Info("gateway shutting down")
	return nil
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
