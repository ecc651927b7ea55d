package execconfig

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
linux:
  types:
    shell:
      binary: /bin/sh
      command_template: ["{binary}", "-c", "{command}"]
    pbrun:
      binary: pbrun
      command_template: ["{binary}", "-h", "{hostname}", "{command}", "{arguments_split}"]
      validation_test:
        command: pbrun
        arguments: ["-h", "{hostname}", "true"]
        expected_exit: 0
  aliases:
    sudo-run: pbrun
`

func TestLoad_MissingFileDegradesToLocal(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "/etc/tasker/exec_types.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Warning())

	_, ok := cfg.Resolve("local")
	assert.True(t, ok)
	_, ok = cfg.Resolve("pbrun")
	assert.False(t, ok)
}

func TestLoad_MalformedYAMLDegradesToLocal(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/exec.yaml", []byte(":\n  - not yaml"), 0o644))
	cfg, err := Load(fs, "/etc/exec.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Warning())
	_, ok := cfg.Resolve("local")
	assert.True(t, ok)
}

func TestLoad_TypesAndAliases(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/exec.yaml", []byte(sampleConfig), 0o644))
	cfg, err := Load(fs, "/etc/exec.yaml")
	require.NoError(t, err)
	assert.Empty(t, cfg.Warning())

	tmpl, ok := cfg.Lookup("pbrun")
	require.True(t, ok)
	assert.Equal(t, "pbrun", tmpl.Binary)
	require.NotNil(t, tmpl.ValidationTest)
	require.NotNil(t, tmpl.ValidationTest.ExpectedExit)
	assert.Equal(t, 0, *tmpl.ValidationTest.ExpectedExit)

	_, ok = cfg.Lookup("sudo-run")
	assert.True(t, ok, "alias should resolve")
	_, ok = cfg.Lookup("bash")
	assert.True(t, ok, "built-in bash alias points at shell")
	_, ok = cfg.Lookup("wwrs")
	assert.False(t, ok)
}

func TestRender_PlaceholderSubstitution(t *testing.T) {
	tmpl := Template{
		Binary:          "pbrun",
		CommandTemplate: []string{"{binary}", "-h", "{hostname}", "{command}", "{arguments_split}"},
	}
	argv := tmpl.Render("web01", "systemctl", "restart nginx")
	assert.Equal(t, []string{"pbrun", "-h", "web01", "systemctl", "restart", "nginx"}, argv)
}

func TestRender_SingleStringArguments(t *testing.T) {
	tmpl := Template{
		Binary:          "/bin/sh",
		CommandTemplate: []string{"{binary}", "-c", "{command}", "{arguments}"},
	}
	argv := tmpl.Render("", "echo hello world", "")
	assert.Equal(t, []string{"/bin/sh", "-c", "echo hello world"}, argv)
}

func TestRender_LocalDirectSpawn(t *testing.T) {
	argv := Local.Render("localhost", "echo", "a b")
	assert.Equal(t, []string{"echo", "a", "b"}, argv)
}
