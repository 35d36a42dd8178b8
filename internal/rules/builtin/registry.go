package builtin

import (
	"logguard/internal/rules"
	"logguard/internal/utils"

	"github.com/sirupsen/logrus"
)

const (
	RuleErrorLevel    = "error_level"
	RuleFailedLogin   = "failed_login"
	RuleCriticalLevel = "critical_level"
	RuleDatabaseIssue = "database_issue"
)

// priority is the evaluation order. It does not follow the order of the config file.
var priority = []string{RuleErrorLevel, RuleFailedLogin, RuleCriticalLevel, RuleDatabaseIssue}

// RegisterBuiltinRules registers the builtin rules in priority order.
// A nil config, or a rule missing from it, leaves the rule enabled.
func RegisterBuiltinRules(engine *rules.Engine, config *utils.LogGuardConfig, logger *logrus.Logger) {
	if config != nil {
		for _, cfg := range config.Rules {
			if !IsBuiltin(cfg.Name) {
				logger.Warnf("Unknown rule type: %s", cfg.Name)
			}
		}
	}

	for _, name := range priority {
		enabled := config == nil || config.IsRuleEnabled(name)
		if !enabled {
			logger.Infof("Rule %s is disabled", name)
		}
		engine.RegisterRule(newRule(name, enabled))
	}
}

// IsBuiltin reports whether name is one of the builtin rules.
func IsBuiltin(name string) bool {
	for _, n := range priority {
		if n == name {
			return true
		}
	}
	return false
}

func newRule(name string, enabled bool) rules.RuleInterface {
	switch name {
	case RuleErrorLevel:
		return NewErrorLevelRule(enabled)
	case RuleFailedLogin:
		return NewFailedLoginRule(enabled)
	case RuleCriticalLevel:
		return NewCriticalLevelRule(enabled)
	default:
		return NewDatabaseIssueRule(enabled)
	}
}
