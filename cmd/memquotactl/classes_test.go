package main

import (
	"testing"

	"github.com/joshuapare/memquota/alloc"
)

func TestBuildClassTable(t *testing.T) {
	table, err := buildClassTable(alloc.ConfigSmallObject)
	if err != nil {
		t.Fatalf("buildClassTable: %v", err)
	}
	if len(table.Classes) != 32 {
		t.Fatalf("classes = %d, want 32", len(table.Classes))
	}
	first := table.Classes[0]
	if first.BlockSize != 16 || first.MinServed != 1 {
		t.Errorf("first class = %+v", first)
	}
	second := table.Classes[1]
	if second.BlockSize != 32 || second.MinServed != 17 {
		t.Errorf("second class = %+v", second)
	}
}

func TestClassesCommand(t *testing.T) {
	tests := []struct {
		name        string
		config      string
		json        bool
		wantErr     bool
		wantContain []string
	}{
		{name: "all configs", wantContain: []string{"Balanced", "Coarse", "SmallObject", "16384"}},
		{name: "one config", config: "Coarse", wantContain: []string{"Coarse", "MAX WASTE"}},
		{name: "json", config: "Balanced", json: true},
		{name: "unknown config", config: "Huge", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			classesConfig = tt.config
			jsonOut = tt.json

			output, err := captureOutput(t, runClasses)
			if (err != nil) != tt.wantErr {
				t.Fatalf("runClasses() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.json {
				var tables []classTable
				decodeJSON(t, output, &tables)
				if len(tables) != 1 || tables[0].Config != "Balanced" {
					t.Errorf("tables = %+v", tables)
				}
			}
			assertContains(t, output, tt.wantContain)
		})
	}
	resetFlags()
}
