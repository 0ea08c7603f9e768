package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/process"

	"github.com/joshuapare/memquota/alloc"
	"github.com/joshuapare/memquota/quota"
	"github.com/joshuapare/memquota/tracked"
)

// limitPresets maps --limits values to registry limits.
var limitPresets = map[string]func() quota.Limits{
	"none":    quota.NoLimits,
	"default": quota.DefaultLimits,
	"strict":  quota.StrictLimits,
}

// newTracker builds a tracker over a tiered allocator using the named size
// class configuration and limits preset. Empty names select the defaults.
func newTracker(configName, limitsName string) (*tracked.Tracker, *alloc.Tiered, error) {
	config := alloc.DefaultConfig
	if configName != "" {
		c, ok := alloc.Configs[configName]
		if !ok {
			return nil, nil, fmt.Errorf("unknown size class config %q (want one of %s)",
				configName, configNames())
		}
		config = c
	}

	limits := quota.NoLimits()
	if limitsName != "" {
		preset, ok := limitPresets[limitsName]
		if !ok {
			return nil, nil, fmt.Errorf("unknown limits preset %q (want none, default or strict)", limitsName)
		}
		limits = preset()
	}

	pool, err := alloc.NewPoolChecked(config)
	if err != nil {
		return nil, nil, err
	}
	raw := alloc.NewTiered(pool, alloc.NewSystem())
	t := tracked.New(raw, tracked.WithRegistry(quota.NewRegistry(limits)))
	return t, raw, nil
}

func configNames() string {
	names := make([]string, 0, len(alloc.Configs))
	for name := range alloc.Configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// processRSS returns the resident set size of this process. It is shown
// next to the ledger totals and is never expected to match them.
func processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	mi, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mi.RSS, nil
}

// sampleRSS is processRSS for report output, where a failure only loses a line.
func sampleRSS() uint64 {
	rss, err := processRSS()
	if err != nil {
		printVerbose("Warning: failed to read process RSS: %v\n", err)
		return 0
	}
	return rss
}
