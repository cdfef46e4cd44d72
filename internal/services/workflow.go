package services

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

const defaultTimeoutMinutes = 360

// WorkflowOptions are the enumerated dispatch inputs of the RDP workflow.
type WorkflowOptions struct {
	OSOptions       []string `json:"osOptions"`
	OSDefault       string   `json:"osDefault"`
	LanguageOptions []string `json:"languageOptions"`
	LanguageDefault string   `json:"languageDefault"`
	TimeoutMinutes  int      `json:"timeoutMinutes"`
}

// ParseWorkflow extracts the os_version and language choices and the
// first timeout-minutes of a workflow file.
func ParseWorkflow(src []byte) (*WorkflowOptions, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %v", err)
	}

	opts := &WorkflowOptions{
		OSOptions:       []string{},
		LanguageOptions: []string{},
		TimeoutMinutes:  defaultTimeoutMinutes,
	}
	if input := findKey(&root, "os_version"); input != nil {
		opts.OSOptions, opts.OSDefault = inputChoices(input)
	}
	if input := findKey(&root, "language"); input != nil {
		opts.LanguageOptions, opts.LanguageDefault = inputChoices(input)
	}
	if tm := findKey(&root, "timeout-minutes"); tm != nil && tm.Kind == yaml.ScalarNode {
		if n, err := strconv.Atoi(tm.Value); err == nil {
			opts.TimeoutMinutes = n
		}
	}
	return opts, nil
}

// findKey returns the value node of the first mapping key named key, in
// document order.
func findKey(n *yaml.Node, key string) *yaml.Node {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			if v := findKey(c, key); v != nil {
				return v
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Value == key {
				return v
			}
			if found := findKey(v, key); found != nil {
				return found
			}
		}
	case yaml.AliasNode:
		if n.Alias != nil {
			return findKey(n.Alias, key)
		}
	}
	return nil
}

func inputChoices(input *yaml.Node) ([]string, string) {
	options := []string{}
	def := ""
	if input.Kind != yaml.MappingNode {
		return options, def
	}
	for i := 0; i+1 < len(input.Content); i += 2 {
		k, v := input.Content[i], input.Content[i+1]
		switch k.Value {
		case "default":
			if v.Kind == yaml.ScalarNode {
				def = v.Value
			}
		case "options":
			if v.Kind != yaml.SequenceNode {
				continue
			}
			for _, item := range v.Content {
				if item.Kind == yaml.ScalarNode {
					options = append(options, item.Value)
				}
			}
		}
	}
	return options, def
}
