package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabric-gateway/agent/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session and credential status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	gw, err := buildGateway()
	if err != nil {
		return err
	}

	sess := gw.machine.Current()

	fmt.Println(titleStyle.Render("Fabric Gateway Status"))

	fmt.Printf("%s %s\n", headerStyle.Render("State:"), sess.State)
	if len(sess.Mode) > 0 {
		fmt.Printf("%s  %s\n", headerStyle.Render("Mode:"), sess.Mode)
	}
	if len(sess.WorkspaceID) > 0 {
		name := sess.WorkspaceName
		if len(name) == 0 {
			name = sess.WorkspaceID
		}
		fmt.Printf("%s %s\n", headerStyle.Render("Workspace:"), name)
	}
	if sess.Dataset != nil {
		fmt.Printf("%s %s\n", headerStyle.Render("Dataset:"), sess.Dataset.Name)
	}
	if sess.Warehouse != nil {
		fmt.Printf("%s %s (database %s)\n",
			headerStyle.Render("Warehouse:"), sess.Warehouse.Endpoint, sess.Warehouse.Database)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Credentials"))
	printScopeStatus("analytics", gw, models.ScopeAnalytics)
	printScopeStatus("sql      ", gw, models.ScopeSQL)

	return nil
}

func printScopeStatus(label string, gw *gateway, scope string) {
	if cred, ok := gw.creds.Cached(scope); ok {
		fmt.Printf("  %s %s\n", label,
			activeStyle.Render(fmt.Sprintf("valid until %s", cred.Expiry.Local().Format("15:04:05"))))
		return
	}
	fmt.Printf("  %s %s\n", label, expiredStyle.Render("none or expired"))
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
