package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthTimeout int

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check OpenSearch cluster health",
	RunE:  runHealth,
}

func init() {
	healthCmd.Flags().IntVar(&healthTimeout, "timeout", 10, "Request timeout in seconds")
}

func runHealth(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(healthTimeout)*time.Second)
	defer cancel()

	status, err := rt.client.HealthCheck(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cluster status: %s\n", status)
	return nil
}
