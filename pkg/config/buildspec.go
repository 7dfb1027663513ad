package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadBuildSpec parses a CodeBuild buildspec file into a generic object
// suitable for inlining into a build project.
func LoadBuildSpec(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read buildspec: %w", err)
	}

	var spec map[string]any
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse buildspec %s: %w", path, err)
	}
	if spec == nil {
		return nil, fmt.Errorf("buildspec %s is empty", path)
	}
	if _, ok := spec["version"]; !ok {
		return nil, fmt.Errorf("buildspec %s has no version", path)
	}
	if _, ok := spec["phases"]; !ok {
		return nil, fmt.Errorf("buildspec %s has no phases", path)
	}
	return spec, nil
}
