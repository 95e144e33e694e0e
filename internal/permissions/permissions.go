// Package permissions enforces the execution policy: which intents count as
// sensitive, which commands automation may launch, and which plugins may run.
//
// Beyond the static sets, operators can supply deny rules as expr
// expressions evaluated against the call being checked, e.g.
//
//	command in ["rm", "dd", "mkfs"]
//	plugin == "developer_tools" && mode == "safe_mode"
//
// A call is blocked when any rule evaluates to true.
package permissions

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/hearthware/concierge/pkg/models"
)

// ruleEnv is the evaluation environment for deny rules. Unused fields are
// empty strings for the check at hand.
type ruleEnv struct {
	Intent  string `expr:"intent"`
	Command string `expr:"command"`
	Plugin  string `expr:"plugin"`
	Mode    string `expr:"mode"`
}

// Manager answers policy questions for the executor and decision engine.
// All lookups are read-only after construction, so it is safe for
// concurrent use without locking.
type Manager struct {
	mode             models.Mode
	sensitiveIntents map[string]struct{}
	blockedCommands  map[string]struct{}
	blockedPlugins   map[string]struct{}
	denyRules        []*vm.Program
}

// Options configures a Manager.
type Options struct {
	Mode             models.Mode
	SensitiveIntents []string
	BlockedCommands  []string
	BlockedPlugins   []string
	DenyRules        []string
}

// DefaultSensitiveIntents are the intents that always route locally.
var DefaultSensitiveIntents = []string{"email_send", "delete_file", "system_shutdown"}

// NewManager compiles the policy. Invalid deny rules are rejected at
// startup rather than skipped at call time.
func NewManager(opts Options) (*Manager, error) {
	m := &Manager{
		mode:             opts.Mode,
		sensitiveIntents: toSet(opts.SensitiveIntents),
		blockedCommands:  toSet(opts.BlockedCommands),
		blockedPlugins:   toSet(opts.BlockedPlugins),
	}
	if len(opts.SensitiveIntents) == 0 {
		m.sensitiveIntents = toSet(DefaultSensitiveIntents)
	}

	for _, rule := range opts.DenyRules {
		prog, err := expr.Compile(rule, expr.Env(ruleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile deny rule %q: %w", rule, err)
		}
		m.denyRules = append(m.denyRules, prog)
	}
	return m, nil
}

// IsSensitiveIntent reports whether intent must execute locally regardless
// of other routing signals.
func (m *Manager) IsSensitiveIntent(intent string) bool {
	if _, ok := m.sensitiveIntents[intent]; ok {
		return true
	}
	return m.denied(ruleEnv{Intent: intent, Mode: string(m.mode)})
}

// IsCommandAllowed reports whether automation may launch command.
func (m *Manager) IsCommandAllowed(command string) bool {
	if _, ok := m.blockedCommands[command]; ok {
		return false
	}
	return !m.denied(ruleEnv{Command: command, Mode: string(m.mode)})
}

// IsPluginAllowed reports whether plugin may be invoked under current policy.
func (m *Manager) IsPluginAllowed(plugin string) bool {
	if _, ok := m.blockedPlugins[plugin]; ok {
		return false
	}
	return !m.denied(ruleEnv{Plugin: plugin, Mode: string(m.mode)})
}

// denied runs every deny rule against env; any true blocks.
func (m *Manager) denied(env ruleEnv) bool {
	for _, prog := range m.denyRules {
		out, err := expr.Run(prog, env)
		if err != nil {
			log.Warn().Err(err).Msg("deny rule evaluation failed, treating as no match")
			continue
		}
		if blocked, ok := out.(bool); ok && blocked {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
