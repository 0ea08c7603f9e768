package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joshuapare/memquota/alloc"
)

var classesConfig string

func init() {
	cmd := newClassesCmd()
	cmd.Flags().StringVar(&classesConfig, "config", "", "Size class config (default: all)")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Print pool size class tables",
		Long: `The classes command prints the block size of every pool size class and
the worst-case internal waste of a request landing in it. Requests are
charged at their block size, so the table shows exactly what a quota sees.

Example:
  memquotactl classes
  memquotactl classes --config Coarse --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses()
		},
	}
	return cmd
}

// classInfo describes one size class.
type classInfo struct {
	Index     int     `json:"index"`
	BlockSize int     `json:"block_size"`
	MinServed int     `json:"min_served"`
	MaxWaste  float64 `json:"max_waste_pct"`
}

// classTable is the class list of one configuration.
type classTable struct {
	Config  string      `json:"config"`
	Classes []classInfo `json:"classes"`
}

func buildClassTable(config alloc.SizeClassConfig) (classTable, error) {
	pool, err := alloc.NewPoolChecked(config)
	if err != nil {
		return classTable{}, err
	}
	sizes := pool.ClassSizes()
	table := classTable{Config: config.Name, Classes: make([]classInfo, len(sizes))}
	prev := 0
	for i, size := range sizes {
		table.Classes[i] = classInfo{
			Index:     i,
			BlockSize: size,
			MinServed: prev + 1,
			MaxWaste:  100 * float64(size-prev-1) / float64(size),
		}
		prev = size
	}
	return table, nil
}

func runClasses() error {
	var configs []alloc.SizeClassConfig
	if classesConfig != "" {
		c, ok := alloc.Configs[classesConfig]
		if !ok {
			return fmt.Errorf("unknown size class config %q (want one of %s)", classesConfig, configNames())
		}
		configs = append(configs, c)
	} else {
		for _, c := range alloc.Configs {
			configs = append(configs, c)
		}
		sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	}

	tables := make([]classTable, 0, len(configs))
	for _, c := range configs {
		t, err := buildClassTable(c)
		if err != nil {
			return err
		}
		tables = append(tables, t)
	}

	if jsonOut {
		return printJSON(tables)
	}

	for i, t := range tables {
		if i > 0 {
			printInfo("\n")
		}
		printInfo("%s (%d classes)\n", headColor(t.Config), len(t.Classes))
		if quiet {
			continue
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintf(w, "CLASS\tBLOCK\tSERVES FROM\tMAX WASTE\t\n")
		for _, c := range t.Classes {
			fmt.Fprintf(w, "%d\t%d\t%d\t%.1f%%\t\n", c.Index, c.BlockSize, c.MinServed, c.MaxWaste)
		}
		w.Flush()
	}
	return nil
}
