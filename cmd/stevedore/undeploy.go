package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var undeployCmd = &cobra.Command{
	Use:   "undeploy <deployment-id>...",
	Short: "Remove deployed apps",
	Long: `Remove every resource a deployment created: the workload object,
its service and any volume claims its instances materialized. Instances
of an indexed app shut down in reverse ordinal order as the statefulset
is torn down.

Undeploying an id that is not deployed is an error.

Examples:
  stevedore undeploy myapp
  stevedore undeploy flow-ingest flow-transform`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUndeploy,
}

func runUndeploy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := newDeployer()
	if err != nil {
		return err
	}

	for _, id := range args {
		if err := d.Undeploy(ctx, id); err != nil {
			return err
		}
		fmt.Printf("Undeployed %s\n", id)
	}
	return nil
}
