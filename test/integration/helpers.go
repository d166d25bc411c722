//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	API        string
	Emulator   string
	KeyID      string
	KeySecret  string
	Project    string
	BinaryPath string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		API:        os.Getenv("DTCLOUD_API"),
		Emulator:   os.Getenv("DTCLOUD_EMULATOR"),
		KeyID:      os.Getenv("DTCLOUD_KEY_ID"),
		KeySecret:  os.Getenv("DTCLOUD_KEY_SECRET"),
		Project:    os.Getenv("DTCLOUD_PROJECT"),
		BinaryPath: getBinaryPath(),
		Verbose:    os.Getenv("DTCLOUD_VERBOSE") == "true",
	}
}

// getBinaryPath determines the path to the dtcloud binary
func getBinaryPath() string {
	if path := os.Getenv("DTCLOUD_BINARY_PATH"); path != "" {
		return path
	}

	candidates := []string{
		"../../dtcloud",
		"./dtcloud",
		"../dtcloud",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "dtcloud"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.KeyID == "" || config.KeySecret == "" || config.Project == "" {
		t.Skip("DTCLOUD_KEY_ID, DTCLOUD_KEY_SECRET and DTCLOUD_PROJECT must be set, skipping integration test")
	}

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("dtcloud binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// CommandRunner runs dtcloud against its own config file
type CommandRunner struct {
	config     *TestConfig
	configFile string
	t          *testing.T
}

// NewCommandRunner creates a runner with an empty config file in a temp dir
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config:     config,
		configFile: filepath.Join(t.TempDir(), "config.yml"),
		t:          t,
	}
}

// Run executes a dtcloud command and returns output
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	args = append([]string{"--config", runner.configFile}, args...)

	cmd := exec.Command(runner.config.BinaryPath, args...)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// Configure writes endpoints, credentials and project into the runner's
// config file.
func (runner *CommandRunner) Configure() error {
	settings := [][]string{{"project", runner.config.Project}}

	if runner.config.API != "" {
		settings = append(settings, []string{"api", runner.config.API})
	}

	if runner.config.Emulator != "" {
		settings = append(settings, []string{"emulator", runner.config.Emulator})
	}

	for _, setting := range settings {
		_, stderr, err := runner.Run("config", "set", setting[0], setting[1])
		if err != nil {
			return commandError("config set "+setting[0], stderr, err)
		}
	}

	_, stderr, err := runner.Run("config", "set-credentials",
		"--client-id", runner.config.KeyID,
		"--client-secret", runner.config.KeySecret)
	if err != nil {
		return commandError("config set-credentials", stderr, err)
	}

	return nil
}

// RunJSON executes a command with JSON output and decodes it into out
func (runner *CommandRunner) RunJSON(out interface{}, args ...string) error {
	stdout, stderr, err := runner.Run(append(args, "--output", "json")...)
	if err != nil {
		return commandError(strings.Join(args, " "), stderr, err)
	}

	return json.Unmarshal([]byte(stdout), out)
}

// GenerateTestName creates a unique test resource name
func GenerateTestName(prefix string) string {
	return prefix + "-" + time.Now().UTC().Format("20060102150405")
}

// WaitForCondition waits for a condition to be met with timeout
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeoutChan := time.After(timeout)

	for {
		select {
		case <-ticker.C:
			if condition() {
				return
			}
		case <-timeoutChan:
			t.Fatalf("Timeout waiting for condition: %s", message)
		}
	}
}

// commandFailure carries the stderr of a failed command
type commandFailure struct {
	command string
	stderr  string
	err     error
}

func (f *commandFailure) Error() string {
	return f.command + ": " + f.err.Error() + ": " + strings.TrimSpace(f.stderr)
}

func (f *commandFailure) Unwrap() error {
	return f.err
}

func commandError(command, stderr string, err error) error {
	return &commandFailure{command: command, stderr: stderr, err: err}
}
