package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/memquota/internal/logger"
	"github.com/joshuapare/memquota/quota"
	"github.com/joshuapare/memquota/tracked"
)

var (
	simulateConfig string
	simulateLimits string
)

func init() {
	cmd := newSimulateCmd()
	cmd.Flags().StringVar(&simulateConfig, "config", "", "Size class config (overrides the scenario)")
	cmd.Flags().StringVar(&simulateLimits, "limits", "", "Limits preset: none, default, strict (overrides the scenario)")
	rootCmd.AddCommand(cmd)
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml|scenario.toml>",
		Short: "Replay a scripted allocation scenario",
		Long: `The simulate command replays a scenario file through the tracking
wrappers and prints the outcome of every step followed by a final report.

A scenario declares sandboxed contexts with optional caps and a list of
steps. Each step is one of alloc, realloc, free, set-cap, clear-cap or
detach. A step may state the outcome it expects (ok, rejected, failed);
the command fails if any step does not match.

Example:
  memquotactl simulate testdata/quota.yaml
  memquotactl simulate testdata/quota.toml --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(args)
		},
	}
	return cmd
}

// scenario is the decoded form of a scenario file.
type scenario struct {
	Config   string            `yaml:"config"   toml:"config"`
	Limits   string            `yaml:"limits"   toml:"limits"`
	Contexts []scenarioContext `yaml:"contexts" toml:"contexts"`
	Steps    []scenarioStep    `yaml:"steps"    toml:"steps"`
}

type scenarioContext struct {
	Name string  `yaml:"name" toml:"name"`
	Cap  *uint64 `yaml:"cap"  toml:"cap"` // nil leaves the context Unbounded
}

type scenarioStep struct {
	Op       string `yaml:"op"       toml:"op"`
	Context  string `yaml:"context"  toml:"context"`
	Category string `yaml:"category" toml:"category"`
	Block    string `yaml:"block"    toml:"block"` // handle naming the block across steps
	Size     int    `yaml:"size"     toml:"size"`
	Cap      uint64 `yaml:"cap"      toml:"cap"`
	Expect   string `yaml:"expect"   toml:"expect"`
}

// Step outcomes.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// loadScenario decodes path as YAML or TOML depending on its extension.
// Unknown fields are errors in both formats.
func loadScenario(path string) (*scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var s scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), &s)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("failed to parse %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format %q (want .yaml, .yml or .toml)", ext)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *scenario) validate() error {
	for i, st := range s.Steps {
		switch st.Op {
		case "alloc", "realloc", "free":
			if st.Block == "" {
				return fmt.Errorf("step %d: %s needs a block name", i+1, st.Op)
			}
		case "set-cap", "clear-cap", "detach":
			if st.Context == "" {
				return fmt.Errorf("step %d: %s needs a context", i+1, st.Op)
			}
		default:
			return fmt.Errorf("step %d: unknown op %q", i+1, st.Op)
		}
		switch st.Expect {
		case "", outcomeOK, outcomeRejected, outcomeFailed:
		default:
			return fmt.Errorf("step %d: unknown expected outcome %q", i+1, st.Expect)
		}
	}
	return nil
}

// stepResult records what one step did.
type stepResult struct {
	Index   int    `json:"index"`
	Op      string `json:"op"`
	Context string `json:"context,omitempty"`
	Block   string `json:"block,omitempty"`
	Size    int    `json:"size,omitempty"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
	Used    uint64 `json:"used"`
	Global  uint64 `json:"global"`
	Matched bool   `json:"matched"`
}

// simulateOutput is the JSON form of a simulation.
type simulateOutput struct {
	Steps  []stepResult `json:"steps"`
	Report reportOutput `json:"report"`
}

type liveBlock struct {
	context  quota.ContextID
	category string
	data     []byte
}

// simulator applies scenario steps to a tracker.
type simulator struct {
	t      *tracked.Tracker
	blocks map[string]liveBlock
}

var errUnknownBlock = errors.New("unknown block")

func (sim *simulator) apply(st scenarioStep) error {
	id := quota.ContextID(st.Context)
	switch st.Op {
	case "alloc":
		if _, ok := sim.blocks[st.Block]; ok {
			return fmt.Errorf("block %q is already live", st.Block)
		}
		b, err := sim.t.Allocate(id, st.Category, st.Size)
		if err != nil {
			return err
		}
		sim.blocks[st.Block] = liveBlock{context: id, category: st.Category, data: b}
	case "realloc":
		lb, ok := sim.blocks[st.Block]
		if !ok {
			return fmt.Errorf("%w %q", errUnknownBlock, st.Block)
		}
		b, err := sim.t.Reallocate(lb.context, lb.category, lb.data, st.Size)
		if err != nil {
			return err
		}
		lb.data = b
		sim.blocks[st.Block] = lb
	case "free":
		lb, ok := sim.blocks[st.Block]
		if !ok {
			return fmt.Errorf("%w %q", errUnknownBlock, st.Block)
		}
		sim.t.Release(lb.context, lb.category, lb.data)
		delete(sim.blocks, st.Block)
	case "set-cap":
		return sim.t.SetQuota(id, st.Cap)
	case "clear-cap":
		return sim.t.ClearQuota(id)
	case "detach":
		_, err := sim.t.Detach(id)
		return err
	}
	return nil
}

// contextOf returns the context a step is charged to.
func (sim *simulator) contextOf(st scenarioStep) quota.ContextID {
	if lb, ok := sim.blocks[st.Block]; ok && st.Context == "" {
		return lb.context
	}
	return quota.ContextID(st.Context)
}

func classify(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, quota.ErrQuotaExceeded):
		return outcomeRejected
	default:
		return outcomeFailed
	}
}

// runScenario executes every step of s and returns the step results.
func runScenario(s *scenario, configName, limitsName string) ([]stepResult, *tracked.Tracker, error) {
	t, _, err := newTracker(configName, limitsName)
	if err != nil {
		return nil, nil, err
	}

	for _, c := range s.Contexts {
		id := quota.ContextID(c.Name)
		if _, err := t.Attach(id); err != nil {
			return nil, nil, fmt.Errorf("context %q: %w", c.Name, err)
		}
		if c.Cap != nil {
			if err := t.SetQuota(id, *c.Cap); err != nil {
				return nil, nil, fmt.Errorf("context %q: %w", c.Name, err)
			}
		}
	}

	sim := &simulator{t: t, blocks: make(map[string]liveBlock)}
	results := make([]stepResult, 0, len(s.Steps))
	for i, st := range s.Steps {
		id := sim.contextOf(st)
		err := sim.apply(st)

		r := stepResult{
			Index:   i + 1,
			Op:      st.Op,
			Context: string(id),
			Block:   st.Block,
			Size:    st.Size,
			Outcome: classify(err),
			Global:  t.GlobalUsage(),
		}
		if err != nil {
			r.Error = err.Error()
		}
		r.Used, _ = t.CurrentUsage(id)
		r.Matched = st.Expect == "" || st.Expect == r.Outcome

		logger.Debug("scenario step", "index", r.Index, "op", r.Op, "context", r.Context,
			"outcome", r.Outcome, "used", r.Used, "global", r.Global)
		results = append(results, r)
	}
	return results, t, nil
}

func runSimulate(args []string) error {
	s, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	configName, limitsName := s.Config, s.Limits
	if simulateConfig != "" {
		configName = simulateConfig
	}
	if simulateLimits != "" {
		limitsName = simulateLimits
	}

	printVerbose("Loaded scenario %s: %d context(s), %d step(s)\n", args[0], len(s.Contexts), len(s.Steps))

	results, t, err := runScenario(s, configName, limitsName)
	if err != nil {
		return err
	}

	mismatched := 0
	for _, r := range results {
		if !r.Matched {
			mismatched++
		}
	}

	report := reportOutput{Report: t.Report(), RSS: sampleRSS()}
	if jsonOut {
		if err := printJSON(simulateOutput{Steps: results, Report: report}); err != nil {
			return err
		}
	} else {
		printSteps(results)
		printReport(report.Report, report.RSS)
	}

	if mismatched > 0 {
		return fmt.Errorf("%d of %d step(s) did not match their expected outcome", mismatched, len(results))
	}
	return nil
}

func printSteps(results []stepResult) {
	for _, r := range results {
		outcome := r.Outcome
		switch r.Outcome {
		case outcomeOK:
			outcome = okColor(outcome)
		case outcomeRejected:
			outcome = rejectColor(outcome)
		default:
			outcome = failColor(outcome)
		}

		target := r.Block
		if target == "" {
			target = r.Context
		}
		line := fmt.Sprintf("%3d  %-9s %-12s %-8s used=%s global=%s",
			r.Index, r.Op, target, outcome, formatBytes(r.Used), formatBytes(r.Global))
		if r.Size > 0 {
			line += printer.Sprintf(" size=%d", r.Size)
		}
		if !r.Matched {
			line += " " + failColor("(unexpected)")
		}
		printInfo("%s\n", line)
		if r.Error != "" {
			printVerbose("     %s\n", r.Error)
		}
	}
}
