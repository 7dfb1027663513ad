package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads, parses and validates the configuration document at path
func Load(path string) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Path = path
		}
		return nil, err
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration document without semantic validation.
// Common pairs and stages keep their document order.
func Parse(data []byte) (*Configuration, error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, &ParseError{Err: err}
	}
	if generic == nil {
		return nil, parseErrorf("empty document")
	}
	if err := checkStructure(generic); err != nil {
		return nil, &ParseError{Err: err}
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, parseErrorf("empty document")
	}
	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, parseErrorf("document root must be a mapping")
	}

	cfg := &Configuration{Common: NewCommon()}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, resolve(root.Content[i+1])
		switch key {
		case "common":
			common, err := parseCommon(value)
			if err != nil {
				return nil, err
			}
			cfg.Common = common
		case "stages":
			stages, err := parseStages(value)
			if err != nil {
				return nil, err
			}
			cfg.Stages = stages
		}
	}
	return cfg, nil
}

func parseCommon(node *yaml.Node) (*Common, error) {
	common := NewCommon()
	if isNull(node) {
		return common, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, parseErrorf("common must be a mapping")
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := resolve(node.Content[i+1])
		if value.Kind != yaml.ScalarNode {
			return nil, parseErrorf("common.%s must be a scalar", key)
		}
		if _, dup := common.Lookup(key); dup {
			return nil, parseErrorf("common.%s is declared more than once", key)
		}
		common.set(key, scalarString(value))
	}
	return common, nil
}

type stageRecord struct {
	HostName             *string   `yaml:"HOST_NAME"`
	GitHubAuthSecretName *string   `yaml:"GITHUB_AUTH_SECRET_NAME"`
	NodeEnv              *string   `yaml:"NODE_ENV"`
	LogLevel             *string   `yaml:"LOG_LEVEL"`
	Approval             *bool     `yaml:"STAGE_APPROVAL"`
	ApprovalEmails       *[]string `yaml:"APPROVAL_EMAILS"`
}

func parseStages(node *yaml.Node) ([]*Stage, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, parseErrorf("stages must be a mapping")
	}

	seen := make(map[string]bool)
	stages := make([]*Stage, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			return nil, parseErrorf("stage %q is declared more than once", name)
		}
		seen[name] = true

		var rec stageRecord
		value := resolve(node.Content[i+1])
		if !isNull(value) {
			if err := value.Decode(&rec); err != nil {
				return nil, &ParseError{Err: fmt.Errorf("stages.%s: %w", name, err)}
			}
		}
		stages = append(stages, &Stage{
			Name:                 name,
			HostName:             rec.HostName,
			GitHubAuthSecretName: rec.GitHubAuthSecretName,
			NodeEnv:              rec.NodeEnv,
			LogLevel:             rec.LogLevel,
			Approval:             rec.Approval,
			ApprovalEmails:       rec.ApprovalEmails,
		})
	}
	return stages, nil
}

func resolve(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// scalarString coerces a scalar to its literal form. Null becomes "".
func scalarString(node *yaml.Node) string {
	if isNull(node) {
		return ""
	}
	return node.Value
}
