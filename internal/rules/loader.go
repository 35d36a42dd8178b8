package rules

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"logguard/internal/model"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk shape: a top-level "rules" list.
type ruleFile struct {
	Rules []model.Rule `yaml:"rules" json:"rules"`
}

type ruleDecoder struct {
	format    string
	unmarshal func([]byte, interface{}) error
}

var (
	yamlRuleDecoder = ruleDecoder{format: "YAML", unmarshal: yaml.Unmarshal}
	jsonRuleDecoder = ruleDecoder{format: "JSON", unmarshal: json.Unmarshal}
)

// LoadRules reads rule settings from a YAML or JSON file. The extension picks
// the decoder; any other extension is tried as YAML, then JSON.
func LoadRules(filename string) ([]model.Rule, error) {
	if filename == "" {
		return nil, errors.New("rules file path is empty")
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var decoders []ruleDecoder
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		decoders = []ruleDecoder{yamlRuleDecoder}
	case ".json":
		decoders = []ruleDecoder{jsonRuleDecoder}
	default:
		decoders = []ruleDecoder{yamlRuleDecoder, jsonRuleDecoder}
	}

	var parseErr error
	for _, d := range decoders {
		var file ruleFile
		if err := d.unmarshal(data, &file); err != nil {
			parseErr = fmt.Errorf("failed to parse %s rules file %s: %w", d.format, filename, err)
			continue
		}
		if err := ValidateRules(file.Rules); err != nil {
			return nil, fmt.Errorf("invalid rules file %s: %w", filename, err)
		}
		return file.Rules, nil
	}
	return nil, parseErr
}

// ValidateRules rejects entries without a name and names listed twice.
// Whether a name is known is left to the registry.
func ValidateRules(rules []model.Rule) error {
	seen := make(map[string]bool, len(rules))
	for i, r := range rules {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("rule %d has no name", i+1)
		}
		if seen[name] {
			return fmt.Errorf("rule %q is listed more than once", name)
		}
		seen[name] = true
	}
	return nil
}
