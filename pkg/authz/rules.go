package authz

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/carebridge/carebridge/pkg/roles"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule binds a (module, action) pair to the minimum role level and the
// scope kind required to perform it.
type Rule struct {
	Module  string     `yaml:"module"`
	Action  string     `yaml:"action"`
	MinRole roles.Role `yaml:"min_role"`
	Scope   ScopeKind  `yaml:"scope"`
}

type ruleKey struct {
	module string
	action string
}

// ruleTable is populated once at process start and read-only afterwards.
var ruleTable map[ruleKey]Rule

func init() {
	table, err := parseRules(rulesYAML)
	if err != nil {
		// Malformed rule table is a build defect; refusing to start is the
		// only safe response.
		panic(fmt.Sprintf("authz: invalid permission rule table: %v", err))
	}
	ruleTable = table
}

func parseRules(data []byte) (map[ruleKey]Rule, error) {
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}

	table := make(map[ruleKey]Rule, len(rules))
	for _, rule := range rules {
		if rule.Module == "" || rule.Action == "" {
			return nil, fmt.Errorf("rule with empty module or action")
		}
		if !roles.Valid(rule.MinRole) {
			return nil, fmt.Errorf("rule %s:%s references unknown role %q",
				rule.Module, rule.Action, rule.MinRole)
		}
		if !rule.Scope.Valid() {
			return nil, fmt.Errorf("rule %s:%s has unknown scope kind %q",
				rule.Module, rule.Action, rule.Scope)
		}

		key := ruleKey{module: rule.Module, action: rule.Action}
		if _, exists := table[key]; exists {
			return nil, fmt.Errorf("duplicate rule for %s:%s", rule.Module, rule.Action)
		}
		table[key] = rule
	}

	return table, nil
}

// LookupRule returns the rule for (module, action), if one exists.
func LookupRule(module, action string) (Rule, bool) {
	rule, ok := ruleTable[ruleKey{module: module, action: action}]
	return rule, ok
}

// Rules returns a copy of the full rule table, for diagnostics.
func Rules() []Rule {
	out := make([]Rule, 0, len(ruleTable))
	for _, rule := range ruleTable {
		out = append(out, rule)
	}
	return out
}
