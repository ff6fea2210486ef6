package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fabric-gateway/agent/internal/common"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve tools over stdio",
	Long: `Serve tools over stdio for an AI assistant client.

Requests are read from stdin and responses written to stdout, one JSON
object per line. All logging goes to stderr.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	gw, err := buildGateway()
	if err != nil {
		return err
	}
	defer gw.warehouse.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logrus.WithField("signal", sig.String()).Infoln("Shutting down")
		cancel()
	}()

	logrus.WithField("version", common.GetVersion()).Infoln("Gateway listening on stdio")
	return gw.server.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
