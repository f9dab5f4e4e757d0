// Package config loads the TOML configuration files for each aurex binary,
// using github.com/naoina/toml the way the teacher's own cmd/* configs do.
package config

import (
	"os"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// NodeConfig configures one PoW mining node (cmd/pownode).
type NodeConfig struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	NodePorts  []int  `toml:"node_ports"`
	Difficulty int    `toml:"difficulty"`
	DataDir    string `toml:"data_dir"`

	GatewayHost string `toml:"gateway_host"`
	GatewayPort int    `toml:"gateway_port"`

	RegistryPath string `toml:"registry_path"`
	RedisAddr    string `toml:"redis_addr"`
}

// GatewayConfig configures the gateway binary (cmd/gateway).
type GatewayConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`

	NodePorts []int  `toml:"node_ports"`
	NodeHost  string `toml:"node_host"`

	AppServerHost string `toml:"appserver_host"`
	AppServerPort int    `toml:"appserver_port"`

	LedgerDataDir string `toml:"ledger_data_dir"`

	FanoutTimeoutSeconds int `toml:"fanout_timeout_seconds"`
}

// AppServerConfig configures the application server binary (cmd/appserver).
type AppServerConfig struct {
	ListenHost string `toml:"listen_host"`
	ListenPort int    `toml:"listen_port"`
	TLSCert    string `toml:"tls_cert"`
	TLSKey     string `toml:"tls_key"`
	TLSClientCA string `toml:"tls_client_ca"`

	GatewayHost string `toml:"gateway_host"`
	GatewayPort int    `toml:"gateway_port"`

	ConfirmationHost string `toml:"confirmation_host"`
	ConfirmationPort int    `toml:"confirmation_port"`

	WalletDialect string `toml:"wallet_dialect"`
	WalletDSN     string `toml:"wallet_dsn"`

	GatewayCallTimeoutSeconds int `toml:"gateway_call_timeout_seconds"`
	TimeoutMonitorIntervalSeconds int `toml:"timeout_monitor_interval_seconds"`
	TxTimeoutSeconds int `toml:"tx_timeout_seconds"`
}

func defaultNodeConfig() NodeConfig {
	return NodeConfig{
		Host:         "127.0.0.1",
		Difficulty:   2,
		DataDir:      "./data",
		RegistryPath: "./data/registry.sqlite3",
	}
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:                 "127.0.0.1",
		Port:                 7000,
		NodeHost:             "127.0.0.1",
		LedgerDataDir:        "./data",
		FanoutTimeoutSeconds: 3,
	}
}

func defaultAppServerConfig() AppServerConfig {
	return AppServerConfig{
		ListenHost:                    "0.0.0.0",
		ListenPort:                    8443,
		GatewayHost:                   "127.0.0.1",
		GatewayPort:                   7000,
		ConfirmationHost:              "127.0.0.1",
		ConfirmationPort:              7100,
		WalletDialect:                 "sqlite3",
		WalletDSN:                     "./data/wallet.sqlite3",
		GatewayCallTimeoutSeconds:     10,
		TimeoutMonitorIntervalSeconds: 5,
		TxTimeoutSeconds:              600,
	}
}

// LoadNodeConfig reads a pownode.toml file, applying defaults for any unset
// field.
func LoadNodeConfig(path string) (NodeConfig, error) {
	cfg := defaultNodeConfig()
	err := decodeFile(path, &cfg)
	return cfg, err
}

// LoadGatewayConfig reads a gateway.toml file.
func LoadGatewayConfig(path string) (GatewayConfig, error) {
	cfg := defaultGatewayConfig()
	err := decodeFile(path, &cfg)
	return cfg, err
}

// LoadAppServerConfig reads an appserver.toml file.
func LoadAppServerConfig(path string) (AppServerConfig, error) {
	cfg := defaultAppServerConfig()
	err := decodeFile(path, &cfg)
	return cfg, err
}

func decodeFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "config: open %s", path)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(v); err != nil {
		return errors.Wrapf(err, "config: decode %s", path)
	}
	return nil
}
