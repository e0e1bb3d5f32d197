package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevedore-app/stevedore/pkg/cluster"
	"github.com/stevedore-app/stevedore/pkg/deployer"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

var (
	configFile string
	namespace  string
	kubeconfig string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "stevedore",
	Short: "Deploy apps to Kubernetes without writing manifests",
	Long: `Stevedore translates "deploy this application" requests into
Kubernetes workload resources and reads normalized app health back out
of the cluster. Deployment options select the workload shape (bare pod,
deployment, or statefulset); the cluster remains the source of truth
for status.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Deployment defaults file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "Target namespace (overrides the defaults file)")
	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig (defaults to $KUBECONFIG, then ~/.kube/config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(undeployCmd)
}

// newDeployer wires what every subcommand needs: the defaults file, the
// logger and the cluster connection.
func newDeployer() (*deployer.Deployer, error) {
	defaults := properties.Properties{}
	if configFile != "" {
		var err error
		if defaults, err = properties.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	if namespace != "" {
		defaults.Namespace = namespace
	}

	client, err := cluster.Connect(kubeconfig)
	if err != nil {
		return nil, err
	}

	return deployer.New(client, defaults, newLogger())
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
