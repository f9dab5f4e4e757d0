// Command appserver runs the application server's tx pipeline, confirmation
// consumer and TLS text-protocol listener (C6).
package main

import (
	"crypto/tls"
	"crypto/x509"
	"io/ioutil"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/aurex-chain/aurex/appserver"
	"github.com/aurex-chain/aurex/config"
	"github.com/aurex-chain/aurex/log"
	"github.com/aurex-chain/aurex/metrics"
	promexporter "github.com/aurex-chain/aurex/metrics/prometheus"
	"github.com/aurex-chain/aurex/storage/walletstore"
)

var logger = log.NewModuleLogger(log.AppServer)

func main() {
	app := cli.NewApp()
	app.Name = "appserver"
	app.Usage = "aurex application server: BUY pipeline and confirmation consumer"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Value: "appserver.toml"},
		cli.StringFlag{Name: "metrics-addr", Value: ""},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Crit("appserver exited with error", "err", err)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadAppServerConfig(c.String("config"))
	if err != nil {
		return err
	}

	logger.Info("starting appserver", "available_memory_mb", memory.TotalMemory()/1024/1024)

	wallet, err := walletstore.Open(cfg.WalletDialect, cfg.WalletDSN)
	if err != nil {
		return err
	}
	defer wallet.Close()

	pipeline := appserver.NewPipeline(appserver.Config{
		GatewayHost:            cfg.GatewayHost,
		GatewayPort:            cfg.GatewayPort,
		GatewayCallTimeout:     time.Duration(cfg.GatewayCallTimeoutSeconds) * time.Second,
		TxTimeout:              time.Duration(cfg.TxTimeoutSeconds) * time.Second,
		TimeoutMonitorInterval: time.Duration(cfg.TimeoutMonitorIntervalSeconds) * time.Second,
	}, appserver.NewWalletStoreAdapter(wallet), nil)
	pipeline.Start()
	defer pipeline.Stop()

	consumer := appserver.NewConfirmationConsumer(pipeline, cfg.ConfirmationHost, cfg.ConfirmationPort)
	if err := consumer.Start(); err != nil {
		return err
	}
	defer consumer.Stop()

	tlsCfg, err := loadTLSConfig(cfg.TLSCert, cfg.TLSKey, cfg.TLSClientCA)
	if err != nil {
		return err
	}

	srv := appserver.NewServer(pipeline, appserver.TLSClientCertSessionResolver{}, tlsCfg, cfg.ListenHost, cfg.ListenPort)
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	if addr := c.String("metrics-addr"); addr != "" {
		exp := promexporter.NewExporter(addr, metrics.DefaultRegistry)
		exp.Start()
	}

	waitForSignal()
	logger.Info("appserver shutting down")
	return nil
}

func loadTLSConfig(certPath, keyPath, clientCAPath string) (*tls.Config, error) {
	if certPath == "" || keyPath == "" {
		logger.Warn("no TLS cert/key configured, running without the TLS listener")
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, err
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}

	if clientCAPath != "" {
		caPEM, err := ioutil.ReadFile(clientCAPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, errors.New("appserver: no certificates parsed from tls_client_ca file")
		}
		tlsCfg.ClientCAs = pool
		tlsCfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsCfg, nil
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}
