package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/vburojevic/pilot/internal/config"
)

// DoctorCmd checks the runtime environment and configuration.
type DoctorCmd struct{}

// checkResult represents a single diagnostic check.
type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// doctorReport is the complete diagnostic report.
type doctorReport struct {
	Type       string        `json:"type"`
	Timestamp  string        `json:"timestamp"`
	Checks     []checkResult `json:"checks"`
	AllPassed  bool          `json:"all_passed"`
	ErrorCount int           `json:"error_count"`
	WarnCount  int           `json:"warn_count"`
}

// Run executes the doctor command.
func (c *DoctorCmd) Run(globals *Globals) error {
	checks := []checkResult{
		c.checkGoRuntime(),
		c.checkConfig(),
		c.checkPatternDir(),
	}

	errorCount, warnCount := 0, 0
	for _, check := range checks {
		switch check.Status {
		case "error":
			errorCount++
		case "warning":
			warnCount++
		}
	}

	report := doctorReport{
		Type:       "doctor",
		Timestamp:  time.Now().Format(time.RFC3339),
		Checks:     checks,
		AllPassed:  errorCount == 0,
		ErrorCount: errorCount,
		WarnCount:  warnCount,
	}

	if globals.Format == "ndjson" {
		encoder := json.NewEncoder(globals.Stdout)
		return encoder.Encode(report)
	}

	fmt.Fprintln(globals.Stdout, "pilot doctor")
	fmt.Fprintln(globals.Stdout, "============")
	fmt.Fprintln(globals.Stdout)

	for _, check := range checks {
		var icon string
		switch check.Status {
		case "ok":
			icon = "✓"
		case "warning":
			icon = "⚠"
		case "error":
			icon = "✗"
		}
		fmt.Fprintf(globals.Stdout, "%s %s\n", icon, check.Name)
		if check.Message != "" {
			fmt.Fprintf(globals.Stdout, "  %s\n", check.Message)
		}
		if check.Details != "" {
			fmt.Fprintf(globals.Stdout, "  %s\n", check.Details)
		}
	}

	fmt.Fprintln(globals.Stdout)
	if errorCount == 0 && warnCount == 0 {
		fmt.Fprintln(globals.Stdout, "All checks passed!")
	} else {
		fmt.Fprintf(globals.Stdout, "Errors: %d, Warnings: %d\n", errorCount, warnCount)
	}
	return nil
}

func (c *DoctorCmd) checkGoRuntime() checkResult {
	return checkResult{
		Name:    "Go runtime",
		Status:  "ok",
		Message: runtime.Version(),
		Details: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (c *DoctorCmd) checkConfig() checkResult {
	configPath := config.ConfigFile()
	if configPath == "" {
		return checkResult{
			Name:    "Config",
			Status:  "ok",
			Message: "Using defaults (no config file)",
			Details: "Create one at ~/.pilot.yaml to override wire/detector settings",
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return checkResult{
			Name:    "Config",
			Status:  "error",
			Message: "Config file has errors",
			Details: err.Error(),
		}
	}

	absPath, _ := filepath.Abs(configPath)
	return checkResult{
		Name:    "Config",
		Status:  "ok",
		Message: fmt.Sprintf("Loaded from: %s", absPath),
		Details: fmt.Sprintf("format=%s separator=%q frame_len=%d queue_cap=%d",
			cfg.Format, cfg.Wire.Separator, cfg.Wire.FrameLen, cfg.Detector.QueueCap),
	}
}

func (c *DoctorCmd) checkPatternDir() checkResult {
	home, err := os.UserHomeDir()
	if err != nil {
		return checkResult{Name: "Pattern store", Status: "warning", Message: "cannot resolve home directory", Details: err.Error()}
	}
	dir := filepath.Join(home, ".pilot")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{Name: "Pattern store", Status: "error", Message: "cannot create " + dir, Details: err.Error()}
	}
	if !c.checkWritePermission(dir) {
		return checkResult{Name: "Pattern store", Status: "error", Message: dir + " is not writable"}
	}
	return checkResult{Name: "Pattern store", Status: "ok", Message: dir}
}

// checkWritePermission checks if we can write to a directory.
func (c *DoctorCmd) checkWritePermission(path string) bool {
	testFile := filepath.Join(path, fmt.Sprintf(".pilot_test_%d", os.Getpid()))
	f, err := os.Create(testFile)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(testFile)
	return true
}
