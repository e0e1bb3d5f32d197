// Package compose loads docker compose projects and translates their
// services into deployment requests.
package compose

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/compose-spec/compose-go/v2/cli"
	"github.com/compose-spec/compose-go/v2/types"
)

// Load parses a compose file into a project. The project name defaults to
// the name of the directory holding the file.
func Load(ctx context.Context, path, projectName string) (*types.Project, error) {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}

	opts := []cli.ProjectOptionsFn{
		cli.WithOsEnv,
		cli.WithDotEnv,
		cli.WithWorkingDirectory(dir),
	}
	if projectName != "" {
		opts = append(opts, cli.WithName(projectName))
	} else if absDir, err := filepath.Abs(dir); err == nil {
		opts = append(opts, cli.WithName(filepath.Base(absDir)))
	}

	options, err := cli.NewProjectOptions([]string{path}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to configure compose loader: %w", err)
	}

	project, err := options.LoadProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load compose file %s: %w", path, err)
	}
	return project, nil
}
