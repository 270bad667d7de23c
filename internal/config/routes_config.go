package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type RoutesConfig interface {
	GetRouteRules() RouteRules
}

// RouteRules describes which paths the edge gate protects.
type RouteRules struct {
	ProtectedPrefixes []string `yaml:"protectedPrefixes"`
	AuthOnlyPaths     []string `yaml:"authOnlyPaths"`
	SignIn            string   `yaml:"signIn"`
	Dashboard         string   `yaml:"dashboard"`
}

func DefaultRouteRules() RouteRules {
	return RouteRules{
		ProtectedPrefixes: []string{"/dashboard"},
		AuthOnlyPaths:     []string{"/login", "/signup"},
		SignIn:            "/login",
		Dashboard:         "/dashboard",
	}
}

type Routes struct {
	rules RouteRules
}

var _ RoutesConfig = Routes{}

func (r Routes) GetRouteRules() RouteRules {
	if r.rules.SignIn == "" {
		return DefaultRouteRules()
	}
	return r.rules
}

// LoadRoutes reads route rules from a YAML file. Fields missing from the file keep their
// defaults. An empty path returns the defaults.
func LoadRoutes(path string) (Routes, error) {
	rules := DefaultRouteRules()
	if path == "" {
		return Routes{rules: rules}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Routes{}, fmt.Errorf("failed to read routes file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Routes{}, fmt.Errorf("failed to parse routes file %s: %w", path, err)
	}
	if rules.SignIn == "" || rules.Dashboard == "" {
		return Routes{}, fmt.Errorf("routes file %s: signIn and dashboard are required", path)
	}
	return Routes{rules: rules}, nil
}
