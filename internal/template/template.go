// Package template renders the scripted follow-up instruction message that
// the auto-iteration trigger sends to the agent.
package template

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/prtrackr/internal/logger"
)

// Variables holds the data injected into template placeholders.
type Variables struct {
	Session   string // Session id
	Iteration string // Current iteration number
	Max       string // Iteration cap
	PR        string // PR number
	URL       string // PR URL
	CITimeout string // How long the agent should wait for CI
	Settle    string // Minimum settle time after the last commit
	Hooks     string // on_iteration hook output (empty if none)
}

// Render replaces {{variable}} placeholders in template with actual values.
// Supports: {{session}}, {{iteration}}, {{max}}, {{pr}}, {{url}},
// {{ci_timeout}}, {{settle}}, {{hooks}}.
func Render(template string, vars Variables) string {
	replacements := map[string]string{
		"{{session}}":    vars.Session,
		"{{iteration}}":  vars.Iteration,
		"{{max}}":        vars.Max,
		"{{pr}}":         vars.PR,
		"{{url}}":        vars.URL,
		"{{ci_timeout}}": vars.CITimeout,
		"{{settle}}":     vars.Settle,
		"{{hooks}}":      vars.Hooks,
	}

	result := template
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	return result
}

// LoadFromFile loads a template from a file.
func LoadFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	return string(data), nil
}

// GetTemplate returns the template content: the file at customPath when
// non-empty, otherwise the default embedded template.
func GetTemplate(customPath string) (string, error) {
	if customPath == "" {
		return DefaultTemplate, nil
	}
	return LoadFromFile(customPath)
}

// BuildConfig holds everything needed to build a follow-up message.
type BuildConfig struct {
	Session      string
	Iteration    int
	MaxIteration int
	PRNumber     int
	PRURL        string
	CITimeout    time.Duration
	ReviewSettle time.Duration
	TemplatePath string // optional custom template
	HookOutput   string // optional on_iteration hook output
}

// BuildFollowUp renders the follow-up instruction message for one iteration.
func BuildFollowUp(cfg BuildConfig) (string, error) {
	content, err := GetTemplate(cfg.TemplatePath)
	if err != nil {
		return "", fmt.Errorf("failed to get template: %w", err)
	}

	hooks := ""
	if cfg.HookOutput != "" {
		hooks = "\nAdditional context from project hooks:\n" + cfg.HookOutput
	}

	vars := Variables{
		Session:   cfg.Session,
		Iteration: strconv.Itoa(cfg.Iteration),
		Max:       strconv.Itoa(cfg.MaxIteration),
		PR:        strconv.Itoa(cfg.PRNumber),
		URL:       cfg.PRURL,
		CITimeout: formatDuration(cfg.CITimeout),
		Settle:    formatDuration(cfg.ReviewSettle),
		Hooks:     hooks,
	}

	msg := Render(content, vars)
	logger.Debug("Follow-up rendered for session %s: %d characters", cfg.Session, len(msg))
	return msg, nil
}

// formatDuration prints durations the way a human would read them in
// instructions: "10 minutes", "90 seconds".
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0 seconds"
	}
	if d >= time.Minute && d%time.Minute == 0 {
		m := int(d / time.Minute)
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	s := int(d / time.Second)
	if s == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", s)
}
