package main

import (
	"runtime"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	resetFlags()
	output, err := captureOutput(t, runVersion)
	if err != nil {
		t.Fatalf("runVersion() error = %v", err)
	}
	assertContains(t, output, []string{"memquotactl", runtime.Version(), "memquota:"})

	jsonOut = true
	defer resetFlags()
	output, err = captureOutput(t, runVersion)
	if err != nil {
		t.Fatalf("runVersion() error = %v", err)
	}
	var info buildInfo
	decodeJSON(t, output, &info)
	if info.GoVersion != runtime.Version() || info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("build info = %+v", info)
	}
}
