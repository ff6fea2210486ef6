package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Discard cached credentials and reset the session",
	RunE:  runLogout,
}

func runLogout(cmd *cobra.Command, args []string) error {
	gw, err := buildGateway()
	if err != nil {
		return err
	}

	if err := gw.creds.InvalidateAll(); err != nil {
		return fmt.Errorf("failed to discard credentials: %w", err)
	}

	if _, err := gw.machine.Reset(); err != nil {
		return fmt.Errorf("failed to reset session: %w", err)
	}

	fmt.Println(successStyle.Render("Logged out"))
	return nil
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
