// Package prompts loads and formats the system prompt templates that
// drive simulated conversations and their evaluation.
package prompts

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"simulator/pkg/logx"
)

// Template names resolved against the prompts directory as <name>.txt.
const (
	AgentSystem     = "agent_system"
	ClientSystem    = "client_system"
	EvaluatorSystem = "evaluator_system"
)

// Fallbacks used when a template file is missing or unreadable.
var fallbacks = map[string]string{
	AgentSystem:     "You are a call center agent. Respond politely and help the client resolve their request.",
	ClientSystem:    "You are a client calling a call center. Behave according to the scenario: {scenario}",
	EvaluatorSystem: "You are a strict quality evaluator. Rate the conversation from 1 to 3 and respond with a JSON object {\"score\": N, \"comment\": \"...\"}.",
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Store holds loaded prompt templates.
type Store struct {
	dir       string
	templates map[string]string
	logger    *logx.Logger
}

// NewStore loads the known templates from dir. Missing files fall back
// to built-in defaults so a fresh checkout still runs.
func NewStore(dir string) *Store {
	s := &Store{
		dir:       dir,
		templates: make(map[string]string),
		logger:    logx.NewLogger("prompts"),
	}
	for name := range fallbacks {
		s.templates[name] = s.load(name)
	}
	return s
}

func (s *Store) load(name string) string {
	path := fmt.Sprintf("%s/%s.txt", s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		s.logger.Warn("prompt template %s not found, using built-in default: %v", name, err)
		return fallbacks[name]
	}
	return strings.TrimSpace(string(data))
}

// Template returns the raw template for name.
func (s *Store) Template(name string) string {
	if tpl, ok := s.templates[name]; ok {
		return tpl
	}
	return fallbacks[name]
}

// Format substitutes {placeholder} variables into the named template.
// If any placeholder has no value the raw template is returned intact,
// which keeps a session running on a misconfigured scenario.
func (s *Store) Format(name string, variables map[string]string) string {
	return FormatTemplate(s.Template(name), variables)
}

// FormatTemplate substitutes {placeholder} variables into template.
func FormatTemplate(template string, variables map[string]string) string {
	missing := false
	result := placeholderRe.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := variables[key]
		if !ok {
			missing = true
			return match
		}
		return value
	})
	if missing {
		return template
	}
	return result
}
