package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultOptions(t *testing.T) {
	opts, err := LoadOptions("")
	if err != nil {
		t.Fatalf("Error loading config: %s", err)
	}

	if opts.Port != defaultPort {
		t.Errorf("Port not set, got %d", opts.Port)
	}
	if opts.LoanPeriodDays != defaultLoanPeriodDays {
		t.Errorf("LoanPeriodDays not set, got %d", opts.LoanPeriodDays)
	}
	if opts.MaxActiveLoans != defaultMaxActiveLoans {
		t.Errorf("MaxActiveLoans not set, got %d", opts.MaxActiveLoans)
	}
	if opts.DailyFineRate != defaultDailyFineRate {
		t.Errorf("DailyFineRate not set, got %s", opts.DailyFineRate)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "openshelf.yaml")
	content := `
host: 127.0.0.1
port: 2333
log_level: debug
loan_period_days: 7
daily_fine_rate: "0.10"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("Error loading config: %s", err)
	}
	if opts.Host != "127.0.0.1" {
		t.Errorf("Host not set")
	}
	if opts.Port != 2333 {
		t.Errorf("Port not set")
	}
	if opts.LogLevel != "debug" {
		t.Errorf("LogLevel not set")
	}
	if opts.LoanPeriodDays != 7 {
		t.Errorf("LoanPeriodDays not set")
	}
	if opts.DailyFineRate != "0.10" {
		t.Errorf("DailyFineRate not set")
	}
	// Unset keys keep their defaults.
	if opts.MaxActiveLoans != defaultMaxActiveLoans {
		t.Errorf("MaxActiveLoans default lost")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("OPENSHELF_PORT", "9999")
	t.Setenv("OPENSHELF_MAX_ACTIVE_LOANS", "5")

	opts, err := LoadOptions("")
	if err != nil {
		t.Fatalf("Error loading config: %s", err)
	}
	if opts.Port != 9999 {
		t.Errorf("Port override lost, got %d", opts.Port)
	}
	if opts.MaxActiveLoans != 5 {
		t.Errorf("MaxActiveLoans override lost, got %d", opts.MaxActiveLoans)
	}
}
