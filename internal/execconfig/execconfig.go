// ABOUTME: Loads execution-type templates (local/shell/pbrun/p7s/wwrs) from a YAML config
// ABOUTME: Tolerant loading: a missing or malformed config degrades to local-only instead of failing startup

package execconfig

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/bastelbude1/tasker/pkg/types"
)

// ValidationTest is an optional probe run during host validation.
type ValidationTest struct {
	Command      string   `yaml:"command"`
	Arguments    []string `yaml:"arguments"`
	ExpectedExit *int     `yaml:"expected_exit"`
	ExpectedOut  string   `yaml:"expected_output"`
}

// Template describes how to build argv for a named execution type.
type Template struct {
	Binary          string          `yaml:"binary"`
	CommandTemplate []string        `yaml:"command_template"`
	ValidationTest  *ValidationTest `yaml:"validation_test"`
}

type platformConfig struct {
	Types   map[string]Template `yaml:"types"`
	Aliases map[string]string   `yaml:"aliases"`
}

type rawConfig struct {
	Linux   platformConfig `yaml:"linux"`
	Windows platformConfig `yaml:"windows"`
}

// Local is the always-present built-in execution type: direct spawn, no wrapper.
var Local = Template{
	Binary:          "",
	CommandTemplate: []string{"{command}", "{arguments_split}"},
}

// Config is the resolved, platform-selected set of execution-type templates.
type Config struct {
	types   map[string]Template
	aliases map[string]string
	warning string // non-fatal degrade-to-local-only diagnostic
}

// Load reads path (YAML) from fs and selects the section matching GOOS. A
// missing or malformed file degrades to local-only with a warning rather
// than failing startup.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := &Config{types: map[string]Template{"local": Local}, aliases: map[string]string{"bash": "shell", "sh": "shell"}}

	exists, err := afero.Exists(fs, path)
	if err != nil || !exists {
		cfg.warning = fmt.Sprintf("exec-type config %q not found; degrading to local-only", path)
		return cfg, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		cfg.warning = fmt.Sprintf("cannot read exec-type config %q: %v; degrading to local-only", path, err)
		return cfg, nil
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		cfg.warning = fmt.Sprintf("malformed exec-type config %q: %v; degrading to local-only", path, err)
		return cfg, nil
	}

	platform := raw.Linux
	if runtime.GOOS == "windows" {
		platform = raw.Windows
	}
	for name, tmpl := range platform.Types {
		cfg.types[name] = tmpl
	}
	for alias, target := range platform.Aliases {
		cfg.aliases[alias] = target
	}
	return cfg, nil
}

// Warning returns the non-fatal degrade diagnostic, if any.
func (c *Config) Warning() string { return c.warning }

// Resolve returns the template for execName, following aliases, reporting
// false when it is not a known exec type ("local" is always known).
func (c *Config) Resolve(execName string) (types.ExecTemplate, bool) {
	t, ok := c.Lookup(execName)
	if !ok {
		return nil, false
	}
	return t, true
}

// Lookup is Resolve with the concrete Template type, for callers that need
// the validation-test fields.
func (c *Config) Lookup(execName string) (Template, bool) {
	if execName == "" {
		execName = "local"
	}
	if target, ok := c.aliases[execName]; ok {
		execName = target
	}
	t, ok := c.types[execName]
	return t, ok
}

var _ types.ExecResolver = (*Config)(nil)

// Render builds argv for a task given its resolved hostname/command/arguments.
func (t Template) Render(hostname, command, arguments string) []string {
	if len(t.CommandTemplate) == 0 {
		if arguments == "" {
			return []string{command}
		}
		return append([]string{command}, strings.Fields(arguments)...)
	}

	var argv []string
	for _, tok := range t.CommandTemplate {
		switch tok {
		case "{binary}":
			if t.Binary != "" {
				argv = append(argv, t.Binary)
			}
		case "{hostname}":
			argv = append(argv, hostname)
		case "{command}":
			argv = append(argv, command)
		case "{arguments}":
			if arguments != "" {
				argv = append(argv, arguments)
			}
		case "{arguments_split}":
			if arguments != "" {
				argv = append(argv, strings.Fields(arguments)...)
			}
		default:
			argv = append(argv, tok)
		}
	}
	return argv
}
