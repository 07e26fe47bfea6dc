package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/carebridge/pkg/roles"
)

func TestEmbeddedRuleTableParses(t *testing.T) {
	table, err := parseRules(rulesYAML)
	require.NoError(t, err)
	assert.NotEmpty(t, table)
}

func TestLookupRule(t *testing.T) {
	rule, ok := LookupRule(ModuleCaseNotes, ActionView)
	require.True(t, ok)
	assert.Equal(t, roles.SupportWorker, rule.MinRole)
	assert.Equal(t, ScopeAssigned, rule.Scope)

	rule, ok = LookupRule(ModuleTenants, ActionCreate)
	require.True(t, ok)
	assert.Equal(t, roles.ConsoleManager, rule.MinRole)
	assert.Equal(t, ScopeGlobal, rule.Scope)

	_, ok = LookupRule("payroll", ActionView)
	assert.False(t, ok)
	_, ok = LookupRule(ModuleClients, "export")
	assert.False(t, ok)
}

func TestParseRulesRejectsUnknownRole(t *testing.T) {
	_, err := parseRules([]byte(`
- module: clients
  action: view
  min_role: superadmin
  scope: tenant
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestParseRulesRejectsUnknownScope(t *testing.T) {
	_, err := parseRules([]byte(`
- module: clients
  action: view
  min_role: admin
  scope: everywhere
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown scope kind")
}

func TestParseRulesRejectsDuplicates(t *testing.T) {
	_, err := parseRules([]byte(`
- module: clients
  action: view
  min_role: admin
  scope: tenant
- module: clients
  action: view
  min_role: coordinator
  scope: tenant
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule")
}

func TestParseRulesRejectsEmptyTable(t *testing.T) {
	_, err := parseRules([]byte(`[]`))
	assert.Error(t, err)
}

func TestParseRulesRejectsMissingFields(t *testing.T) {
	_, err := parseRules([]byte(`
- module: ""
  action: view
  min_role: admin
  scope: tenant
`))
	assert.Error(t, err)
}

// Every rule in the shipped table must be internally consistent: global
// scope only ever pairs with the global role.
func TestShippedRulesGlobalScopeRequiresGlobalRole(t *testing.T) {
	for _, rule := range Rules() {
		if rule.Scope == ScopeGlobal {
			assert.Equal(t, roles.ConsoleManager, rule.MinRole,
				"rule %s:%s grants global scope below console manager", rule.Module, rule.Action)
		}
	}
}
