package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stevedore-app/stevedore/pkg/deployer"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status <deployment-id>...",
	Short: "Show app status",
	Long: `Show the normalized status of deployed apps.

Each app reports one of: deploying, deployed, partial, failed, error,
unknown. The state is recomputed from the cluster on every call; an id
that was never deployed (or an unreachable cluster) reports unknown.

Table columns:
  DEPLOYMENT ID  The id returned by deploy
  STATE          Aggregated app state
  READY          Ready instances / observed instances
  URL            Load balancer URL once published, "-" otherwise

Use -o json for the full status including per-instance attributes
(pod name, pod IP, host IP, restarts, DNS name for indexed apps).

Examples:
  stevedore status myapp
  stevedore status flow-ingest flow-transform -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusFormat, "format", "o", "table", "Output format (table, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := newDeployer()
	if err != nil {
		return err
	}

	statuses := make([]deployer.AppStatus, 0, len(args))
	for _, id := range args {
		statuses = append(statuses, d.Status(ctx, id))
	}

	switch statusFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	default:
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "DEPLOYMENT ID\tSTATE\tREADY\tURL")
		for _, s := range statuses {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", s.DeploymentID, s.State, readyInstances(s), len(s.Instances), appURL(s))
		}
		return w.Flush()
	}
}

func readyInstances(s deployer.AppStatus) int {
	ready := 0
	for _, inst := range s.Instances {
		if inst.State == deployer.StateDeployed {
			ready++
		}
	}
	return ready
}

func appURL(s deployer.AppStatus) string {
	for _, inst := range s.Instances {
		if url := inst.Attributes["url"]; url != "" {
			return url
		}
	}
	return "-"
}
