package builtin

import (
	"strings"

	"logguard/internal/model"
	"logguard/internal/rules"
)

var failedLoginPhrases = []string{"failed login", "authentication failed"}

type FailedLoginRule struct {
	name    string
	enabled bool
}

func NewFailedLoginRule(enabled bool) *FailedLoginRule {
	return &FailedLoginRule{
		name:    RuleFailedLogin,
		enabled: enabled,
	}
}

func (r *FailedLoginRule) Name() string {
	return r.name
}

func (r *FailedLoginRule) Description() string {
	return "Message reports a failed login or authentication failure"
}

func (r *FailedLoginRule) Type() model.AnomalyType {
	return model.AnomalyFailedLogin
}

func (r *FailedLoginRule) IsEnabled() bool {
	return r.enabled
}

func (r *FailedLoginRule) Match(in rules.Input) bool {
	for _, phrase := range failedLoginPhrases {
		if strings.Contains(in.Message, phrase) {
			return true
		}
	}
	return false
}
