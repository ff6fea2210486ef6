package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with Microsoft Fabric",
	Long:  "Opens a browser to authenticate with Entra ID and caches credentials for both service scopes",
	RunE:  runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	gw, err := buildGateway()
	if err != nil {
		return err
	}

	// Allow Ctrl+C to cancel a pending browser or device-code prompt
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	fmt.Println(titleStyle.Render("Fabric Gateway Login"))
	fmt.Println("A browser window will open to complete sign-in.")
	fmt.Println()

	sess, err := gw.machine.Authenticate(ctx)
	if err != nil {
		fmt.Println(errorStyle.Render("Login failed"))
		return err
	}

	fmt.Println(successStyle.Render("Logged in"))
	fmt.Printf("Session state: %s\n", sess.State)
	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
