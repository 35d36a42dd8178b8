package builtin

import (
	"strings"

	"logguard/internal/model"
	"logguard/internal/rules"
)

type DatabaseIssueRule struct {
	name    string
	enabled bool
}

func NewDatabaseIssueRule(enabled bool) *DatabaseIssueRule {
	return &DatabaseIssueRule{
		name:    RuleDatabaseIssue,
		enabled: enabled,
	}
}

func (r *DatabaseIssueRule) Name() string {
	return r.name
}

func (r *DatabaseIssueRule) Description() string {
	return "Database timeout or connection failure"
}

func (r *DatabaseIssueRule) Type() model.AnomalyType {
	return model.AnomalyDatabaseIssue
}

func (r *DatabaseIssueRule) IsEnabled() bool {
	return r.enabled
}

func (r *DatabaseIssueRule) Match(in rules.Input) bool {
	if !strings.Contains(in.Message, "database") {
		return false
	}
	return strings.Contains(in.Message, "timeout") || strings.Contains(in.Message, "connection")
}
