package compose

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/types"

	"github.com/stevedore-app/stevedore/pkg/deployer"
	"github.com/stevedore-app/stevedore/pkg/properties"
)

// Translate turns every service of a compose project into a deployment
// request, in service name order. The project name becomes the deployment
// group, so one compose project lands on the cluster as one named group.
func Translate(project *types.Project) ([]deployer.Request, error) {
	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	requests := make([]deployer.Request, 0, len(names))
	for _, name := range names {
		req, err := translateService(project.Name, project.Services[name])
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, nil
}

func translateService(projectName string, svc types.ServiceConfig) (deployer.Request, error) {
	if svc.Image == "" {
		return deployer.Request{}, fmt.Errorf("service %s has no image; images must be built and pushed beforehand", svc.Name)
	}

	req := deployer.Request{
		Name:       svc.Name,
		Image:      svc.Image,
		Args:       svc.Command,
		Config:     map[string]string{},
		Properties: map[string]string{},
	}

	for name, value := range svc.Environment {
		if value != nil {
			req.Config[name] = *value
		} else {
			req.Config[name] = ""
		}
	}

	// Deployment options ride on service labels. Anything outside the
	// platform namespace is app metadata and stays behind.
	for key, value := range svc.Labels {
		switch {
		case strings.HasPrefix(key, properties.PropertyPrefix),
			key == properties.PropertyGroup,
			key == properties.PropertyIndexed,
			key == properties.PropertyCount:
			req.Properties[key] = value
		}
	}

	if _, ok := req.Properties[properties.PropertyGroup]; !ok {
		req.Properties[properties.PropertyGroup] = projectName
	}
	if svc.Deploy != nil && svc.Deploy.Replicas != nil {
		req.Properties[properties.PropertyCount] = strconv.Itoa(int(*svc.Deploy.Replicas))
	}

	if len(svc.Ports) > 0 {
		port := svc.Ports[0]
		if port.Target != 0 {
			req.Properties[properties.PropertyPrefix+properties.OptionContainerPort] = strconv.Itoa(int(port.Target))
		}
		// A published port means the service wants to be reachable from
		// outside the cluster.
		if port.Published != "" {
			req.Properties[properties.PropertyPrefix+properties.OptionCreateLoadBalancer] = "true"
		}
	}

	return req, nil
}
