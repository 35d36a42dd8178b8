package builtin

import (
	"logguard/internal/model"
	"logguard/internal/rules"
)

type CriticalLevelRule struct {
	name    string
	enabled bool
}

func NewCriticalLevelRule(enabled bool) *CriticalLevelRule {
	return &CriticalLevelRule{
		name:    RuleCriticalLevel,
		enabled: enabled,
	}
}

func (r *CriticalLevelRule) Name() string {
	return r.name
}

func (r *CriticalLevelRule) Description() string {
	return "CRITICAL level log line"
}

func (r *CriticalLevelRule) Type() model.AnomalyType {
	return model.AnomalyCriticalError
}

func (r *CriticalLevelRule) IsEnabled() bool {
	return r.enabled
}

func (r *CriticalLevelRule) Match(in rules.Input) bool {
	return in.Level == "CRITICAL"
}
