package main

import (
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/memquota/quota"
	"github.com/joshuapare/memquota/tracked"
)

var (
	okColor     = color.New(color.FgGreen).SprintFunc()
	rejectColor = color.New(color.FgYellow).SprintFunc()
	failColor   = color.New(color.FgHiRed).SprintFunc()
	headColor   = color.New(color.Bold).SprintFunc()
)

var printer = message.NewPrinter(language.English)

// formatBytes renders n with digit grouping, e.g. "1,048,576 B".
func formatBytes(n uint64) string {
	return printer.Sprintf("%d B", n)
}

func formatCap(s quota.Stats) string {
	if s.State == quota.Unbounded {
		return "unbounded"
	}
	return formatBytes(s.Cap)
}

// reportOutput is the JSON form of a final report.
type reportOutput struct {
	tracked.Report
	RSS uint64 `json:"rss,omitempty"`
}

// printReport prints the ledger totals, per-category usage and per-context
// guard statistics.
func printReport(r tracked.Report, rss uint64) {
	if quiet {
		return
	}
	printInfo("\n%s\n", headColor("Ledger"))
	printInfo("  Global:          %s\n", formatBytes(r.Ledger.Global))
	printInfo("  Peak:            %s\n", formatBytes(r.Ledger.Peak))
	if r.Ledger.Inconsistencies > 0 {
		printInfo("  Inconsistencies: %s\n", failColor(r.Ledger.Inconsistencies))
	} else {
		printInfo("  Inconsistencies: 0\n")
	}
	if rss > 0 {
		printInfo("  Process RSS:     %s\n", formatBytes(rss))
	}

	if len(r.Ledger.Categories) > 0 {
		printInfo("\n%s\n", headColor("Categories"))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, c := range r.Ledger.Categories {
			printer.Fprintf(w, "  %s\t%d B\n", c.Name, c.Bytes)
		}
		w.Flush()
	}

	if len(r.Contexts) > 0 {
		printInfo("\n%s\n", headColor("Contexts"))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		printer.Fprintf(w, "  CONTEXT\tCAP\tUSED\tPEAK\tRESERVATIONS\tREJECTIONS\tCLAMPS\n")
		for _, s := range r.Contexts {
			printer.Fprintf(w, "  %s\t%s\t%d\t%d\t%d\t%d\t%d\n",
				s.Context, formatCap(s), s.Used, s.Peak, s.Reservations, s.Rejections, s.Clamps)
		}
		w.Flush()
	}
}
