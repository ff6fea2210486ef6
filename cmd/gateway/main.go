package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fabric-gateway/agent/internal/auth"
	"github.com/fabric-gateway/agent/internal/bridge"
	"github.com/fabric-gateway/agent/internal/config"
	"github.com/fabric-gateway/agent/internal/semantic"
	"github.com/fabric-gateway/agent/internal/session"
	"github.com/fabric-gateway/agent/internal/tools"
	"github.com/fabric-gateway/agent/internal/warehouse"
)

// Global configuration instance
var cfg *config.Config

// gateway bundles the wired components a command operates on.
type gateway struct {
	creds     *auth.Manager
	machine   *session.Machine
	warehouse *warehouse.Adapter
	server    *tools.Server
}

// loadConfig loads the configuration based on the --config flag or default locations
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")

	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	return config.Load(configFile)
}

func preRunConfigE(cmd *cobra.Command, _ []string) error {
	// Load configuration before any command runs
	var err error
	cfg, err = loadConfig(cmd)

	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// check if verbose flag is set
	verbose, err := cmd.Flags().GetBool("verbose")
	if err == nil && verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	return nil
}

// buildGateway wires the credential manager, session machine, adapters and
// the stdio server from the loaded configuration.
func buildGateway() (*gateway, error) {
	store, err := auth.NewFileStore(cfg.TokenCachePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open credential cache: %w", err)
	}

	source, err := auth.NewEntraSource(cfg.Auth.ClientID, cfg.Auth.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize identity source: %w", err)
	}

	creds := auth.NewManager(store, source)

	sessionStore, err := session.NewStore(cfg.SessionPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	machine := session.NewMachine(sessionStore, creds)
	semanticAdapter := semantic.NewAdapter(creds, cfg.Limits)
	warehouseAdapter := warehouse.NewAdapter(creds, cfg.Limits)
	opBridge := bridge.New(cfg.Bridge.Executor, cfg.Bridge.Timeout)

	dispatcher := tools.NewDispatcher(machine, creds, semanticAdapter, warehouseAdapter, opBridge)

	return &gateway{
		creds:     creds,
		machine:   machine,
		warehouse: warehouseAdapter,
		server:    tools.NewServer(dispatcher, os.Stdin, os.Stdout),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Fabric Gateway - AI assistant access to Microsoft Fabric",
	Long: `Fabric Gateway brokers AI assistant access to Microsoft Fabric.

It manages Entra ID credentials, tracks the connection session and exposes
semantic model and warehouse operations as tools over stdio.

If no config file is specified, the gateway looks for config.yaml in:
  - ./config.yaml
  - ./config/config.yaml
  - /etc/fabric-gateway/config.yaml
  - ~/.fabric-gateway/config.yaml`,
	PersistentPreRunE: preRunConfigE,
	RunE:              runServe,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is ~/.fabric-gateway/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Fatalf("Failed to execute command: %v", err)
	}
}
