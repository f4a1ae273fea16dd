package hooks

// Config is the top-level configuration loaded from .prtrackr.hooks.yml.
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig contains all hook configurations.
type HooksConfig struct {
	OnIteration []*HookConfig `yaml:"on_iteration"`
}

// HookConfig defines a single hook's configuration.
type HookConfig struct {
	Command    string `yaml:"command"`
	Timeout    int    `yaml:"timeout"`     // seconds, default 30
	PipeOutput bool   `yaml:"pipe_output"` // append stdout to the follow-up message
}

// DefaultTimeout is the default timeout for hook execution in seconds.
const DefaultTimeout = 30
