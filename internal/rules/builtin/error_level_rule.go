package builtin

import (
	"logguard/internal/model"
	"logguard/internal/rules"
)

type ErrorLevelRule struct {
	name    string
	enabled bool
}

func NewErrorLevelRule(enabled bool) *ErrorLevelRule {
	return &ErrorLevelRule{
		name:    RuleErrorLevel,
		enabled: enabled,
	}
}

func (r *ErrorLevelRule) Name() string {
	return r.name
}

func (r *ErrorLevelRule) Description() string {
	return "ERROR level log line"
}

func (r *ErrorLevelRule) Type() model.AnomalyType {
	return model.AnomalyErrorSpike
}

func (r *ErrorLevelRule) IsEnabled() bool {
	return r.enabled
}

func (r *ErrorLevelRule) Match(in rules.Input) bool {
	return in.Level == "ERROR"
}
