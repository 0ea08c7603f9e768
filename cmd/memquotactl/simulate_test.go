package main

import (
	"strings"
	"testing"
)

func TestSimulateCommand(t *testing.T) {
	tests := []struct {
		name        string
		scenario    string
		json        bool
		wantErr     bool
		wantContain []string
	}{
		{
			name:        "yaml scenario",
			scenario:    "quota.yaml",
			wantContain: []string{"rejected", "Ledger", "sandbox", "unbounded", "768 B"},
		},
		{
			name:        "toml scenario",
			scenario:    "quota.toml",
			wantContain: []string{"rejected", "Ledger"},
		},
		{
			name:     "yaml scenario as JSON",
			scenario: "quota.yaml",
			json:     true,
		},
		{
			name:        "unexpected outcome",
			scenario:    "mismatch.yaml",
			wantErr:     true,
			wantContain: []string{"(unexpected)"},
		},
		{
			name:     "unknown op",
			scenario: "bad_op.yaml",
			wantErr:  true,
		},
		{
			name:     "unknown toml key",
			scenario: "unknown_field.toml",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			jsonOut = tt.json

			output, err := captureOutput(t, func() error {
				return runSimulate([]string{testdataPath(t, tt.scenario)})
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("runSimulate() error = %v, wantErr %v\nOutput: %s", err, tt.wantErr, output)
			}
			if tt.json {
				var out simulateOutput
				decodeJSON(t, output, &out)
				if len(out.Steps) == 0 {
					t.Fatalf("no steps in JSON output")
				}
			}
			assertContains(t, output, tt.wantContain)
		})
	}
}

func TestSimulateEndToEndUsage(t *testing.T) {
	resetFlags()
	s, err := loadScenario(testdataPath(t, "quota.yaml"))
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}
	results, tr, err := runScenario(s, "", "")
	if err != nil {
		t.Fatalf("runScenario: %v", err)
	}

	want := []struct {
		outcome string
		used    uint64
	}{
		{outcomeOK, 768},
		{outcomeRejected, 768},
		{outcomeOK, 0},
		{outcomeOK, 512},
		{outcomeRejected, 512},
		{outcomeOK, 512},
		{outcomeOK, 5832},
		{outcomeOK, 5832},
		{outcomeRejected, 5832},
	}
	for i, w := range want {
		r := results[i]
		if r.Outcome != w.outcome || r.Used != w.used {
			t.Errorf("step %d (%s): outcome %s used %d, want %s used %d",
				r.Index, r.Op, r.Outcome, r.Used, w.outcome, w.used)
		}
	}
	for _, r := range results {
		if !r.Matched {
			t.Errorf("step %d (%s) did not match: %s %s", r.Index, r.Op, r.Outcome, r.Error)
		}
	}

	last := results[len(results)-1]
	if !strings.Contains(last.Error, "unknown block") {
		t.Errorf("last step error = %q, want unknown block", last.Error)
	}
	if got := tr.GlobalUsage(); got != 5832 {
		t.Errorf("global usage = %d, want 5832", got)
	}
	if n := tr.Ledger().Inconsistencies(); n != 0 {
		t.Errorf("inconsistencies = %d, want 0", n)
	}
}

func TestSimulateFlagOverrides(t *testing.T) {
	resetFlags()
	simulateLimits = "bogus"
	defer resetFlags()

	_, err := captureOutput(t, func() error {
		return runSimulate([]string{testdataPath(t, "quota.yaml")})
	})
	if err == nil || !strings.Contains(err.Error(), "unknown limits preset") {
		t.Fatalf("runSimulate() error = %v, want unknown limits preset", err)
	}
}

func TestLoadScenarioRejectsUnknownExtension(t *testing.T) {
	if _, err := loadScenario(testdataPath(t, "quota.yaml") + ".bak"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
	path := t.TempDir() + "/scenario.json"
	if err := writeFile(path, "{}"); err != nil {
		t.Fatal(err)
	}
	_, err := loadScenario(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported scenario format") {
		t.Fatalf("loadScenario() error = %v, want unsupported format", err)
	}
}
