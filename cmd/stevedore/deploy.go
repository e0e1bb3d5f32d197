package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevedore-app/stevedore/pkg/artifact"
	"github.com/stevedore-app/stevedore/pkg/compose"
	"github.com/stevedore-app/stevedore/pkg/deployer"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

var (
	deployImage       string
	deployGroup       string
	deployIndexed     bool
	deployCount       int
	deployEnv         []string
	deploySet         []string
	deployComposeFile string
	deployProject     string
	deployDocker      bool
	deployPull        bool
	deployWait        bool
	deployWaitAddress bool
	deployTimeout     time.Duration
)

var deployCmd = &cobra.Command{
	Use:   "deploy [app-name] [-- container-args...]",
	Short: "Deploy an app to the cluster",
	Long: `Deploy an app to the cluster.

The app's image and options decide the workload shape: a plain deploy
creates a bare pod, --count > 1 creates a Deployment, and --indexed
creates a StatefulSet whose instances start one by one and keep stable,
ordinal identities. Options can also be set per deployment with
--set using their full property names.

Arguments after -- are passed to the container unchanged.

With --compose, every service of a compose file is deployed as one
group named after the project; service labels in the stevedore
namespace become deployment options.

Flags:
  -i, --image <ref>      Container image to run (required without --compose)
      --group <name>     Deploy into a named group; the group prefixes the
                         deployment id and is injected as STEVEDORE_GROUP
      --indexed          Indexed workload with stable instance identities
      --count <n>        Number of instances (default 1)
  -e, --env KEY=VALUE    App configuration, injected as environment (repeatable)
      --set key=value    Deployment option, e.g. stevedore.kubernetes.memory=512Mi
      --compose <path>   Deploy all services of a compose file
      --project-name     Project (group) name for --compose
      --docker           Resolve the image against the local docker daemon
                         and pin its digest
      --pull             With --docker, pull the image when missing locally
      --wait             Wait until the app reaches a terminal state
      --wait-address     Wait for the load balancer address and print it
      --timeout <d>      Budget for --wait (default 5m)

Examples:
  stevedore deploy myapp -i registry.example.com/myapp:1.0
  stevedore deploy myapp -i myapp:1.0 --count 3 --set stevedore.kubernetes.createLoadBalancer=true
  stevedore deploy db -i postgres:16 --indexed --count 2 -- -c max_connections=200
  stevedore deploy --compose compose.yaml --wait`,
	Args: cobra.ArbitraryArgs,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVarP(&deployImage, "image", "i", "", "Container image to run")
	deployCmd.Flags().StringVar(&deployGroup, "group", "", "Deployment group name")
	deployCmd.Flags().BoolVar(&deployIndexed, "indexed", false, "Deploy an indexed workload with stable instance identities")
	deployCmd.Flags().IntVar(&deployCount, "count", 0, "Number of app instances")
	deployCmd.Flags().StringArrayVarP(&deployEnv, "env", "e", nil, "App configuration as KEY=VALUE (repeatable)")
	deployCmd.Flags().StringArrayVar(&deploySet, "set", nil, "Deployment option as key=value (repeatable)")
	deployCmd.Flags().StringVar(&deployComposeFile, "compose", "", "Deploy all services of a compose file")
	deployCmd.Flags().StringVar(&deployProject, "project-name", "", "Project name for --compose (defaults to directory name)")
	deployCmd.Flags().BoolVar(&deployDocker, "docker", false, "Resolve the image against the local docker daemon")
	deployCmd.Flags().BoolVar(&deployPull, "pull", false, "With --docker, pull the image when missing locally")
	deployCmd.Flags().BoolVar(&deployWait, "wait", false, "Wait until the app reaches a terminal state")
	deployCmd.Flags().BoolVar(&deployWaitAddress, "wait-address", false, "Wait for the load balancer address and print it")
	deployCmd.Flags().DurationVar(&deployTimeout, "timeout", 5*time.Minute, "Budget for --wait")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	d, err := newDeployer()
	if err != nil {
		return err
	}

	resolver, closeResolver, err := newResolver()
	if err != nil {
		return err
	}
	defer closeResolver()

	if deployComposeFile != "" {
		if len(args) != 0 {
			return fmt.Errorf("--compose deploys the whole project; positional arguments are not allowed")
		}
		return deployComposeProject(ctx, d, resolver)
	}

	name, containerArgs, err := splitDeployArgs(cmd, args)
	if err != nil {
		return err
	}
	if deployImage == "" {
		return fmt.Errorf("--image is required (or use --compose)")
	}

	req, err := buildRequest(name, containerArgs)
	if err != nil {
		return err
	}
	if req.Image, err = resolveImage(ctx, resolver, deployImage); err != nil {
		return err
	}

	return deployOne(ctx, d, req)
}

func deployComposeProject(ctx context.Context, d *deployer.Deployer, resolver artifact.Resolver) error {
	project, err := compose.Load(ctx, deployComposeFile, deployProject)
	if err != nil {
		return err
	}
	requests, err := compose.Translate(project)
	if err != nil {
		return err
	}

	fmt.Printf("Deploying %d services of project %s\n", len(requests), project.Name)
	for _, req := range requests {
		if req.Image, err = resolveImage(ctx, resolver, req.Image); err != nil {
			return err
		}
		if err := deployOne(ctx, d, req); err != nil {
			return err
		}
	}
	return nil
}

func deployOne(ctx context.Context, d *deployer.Deployer, req deployer.Request) error {
	if err := d.Preflight(ctx, req); err != nil {
		return err
	}
	id, err := d.Deploy(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Deployed %s as %s in namespace %s\n", req.Name, id, d.Namespace())

	if deployWait {
		if err := waitForTerminal(ctx, d, id, deployTimeout); err != nil {
			return err
		}
	}
	if deployWaitAddress {
		addr, ok, err := d.WaitForAddress(ctx, id, 0)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no load balancer address published for %s", id)
		}
		fmt.Printf("%s is reachable at %s\n", id, addr)
	}
	return nil
}

// splitDeployArgs separates the app name from container arguments given
// after the -- marker.
func splitDeployArgs(cmd *cobra.Command, args []string) (string, []string, error) {
	dash := cmd.ArgsLenAtDash()
	named := args
	var containerArgs []string
	if dash >= 0 {
		named, containerArgs = args[:dash], args[dash:]
	}
	if len(named) != 1 {
		return "", nil, fmt.Errorf("exactly one app name is required, got %d", len(named))
	}
	return named[0], containerArgs, nil
}

func buildRequest(name string, containerArgs []string) (deployer.Request, error) {
	config, err := parseKeyValues("env", deployEnv)
	if err != nil {
		return deployer.Request{}, err
	}
	props, err := parseKeyValues("set", deploySet)
	if err != nil {
		return deployer.Request{}, err
	}
	if props == nil {
		props = map[string]string{}
	}
	if deployGroup != "" {
		props[properties.PropertyGroup] = deployGroup
	}
	if deployIndexed {
		props[properties.PropertyIndexed] = "true"
	}
	if deployCount > 0 {
		props[properties.PropertyCount] = strconv.Itoa(deployCount)
	}

	return deployer.Request{
		Name:       name,
		Args:       containerArgs,
		Config:     config,
		Properties: props,
	}, nil
}

// parseKeyValues splits repeated KEY=VALUE flag values into a map.
func parseKeyValues(flag string, pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("--%s %q is not KEY=VALUE", flag, pair)
		}
		m[key] = value
	}
	return m, nil
}

func newResolver() (artifact.Resolver, func(), error) {
	if !deployDocker {
		return artifact.RefResolver{}, func() {}, nil
	}
	r, err := artifact.NewDockerResolver(deployPull, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	return r, func() { _ = r.Close() }, nil
}

// resolveImage normalizes the reference and, when a daemon digest is
// known, pins the image to it so the cluster runs exactly the inspected
// build.
func resolveImage(ctx context.Context, resolver artifact.Resolver, image string) (string, error) {
	art, err := resolver.Resolve(ctx, image)
	if err != nil {
		return "", err
	}
	if art.Digest != "" && !strings.Contains(art.Reference, "@") {
		pinned := art.Name + "@" + art.Digest
		fmt.Printf("Pinned %s to %s\n", art.Reference, pinned)
		return pinned, nil
	}
	return art.Reference, nil
}

func waitForTerminal(ctx context.Context, d *deployer.Deployer, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		status := d.Status(ctx, id)
		switch status.State {
		case deployer.StateDeployed:
			fmt.Printf("%s is deployed\n", id)
			return nil
		case deployer.StateFailed, deployer.StateError:
			return fmt.Errorf("%s entered state %s", id, status.State)
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s (last state %s)", id, status.State)
		}
		time.Sleep(2 * time.Second)
	}
}
