package model

// Rule is the configuration entry for a detection rule
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// RuleInfo describes a registered rule for API consumers.
type RuleInfo struct {
	Name        string      `json:"name"`
	Type        AnomalyType `json:"type"`
	Severity    Severity    `json:"severity"`
	Enabled     bool        `json:"enabled"`
	Priority    int         `json:"priority"`
	Description string      `json:"description"`
}
