package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/pphpc/engine"
	"github.com/pthm-cable/pphpc/rng"
	"github.com/pthm-cable/pphpc/systems"
)

var listCmd = &cobra.Command{
	Use:       "list [strategies|rngs|phases]",
	Short:     "List strategies, RNG algorithms and tick phases",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"strategies", "rngs", "phases"},
	RunE: func(cmd *cobra.Command, args []string) error {
		what := "all"
		if len(args) == 1 {
			what = args[0]
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		switch what {
		case "strategies":
			listStrategies(w)
		case "rngs":
			listRNGs(w)
		case "phases":
			listPhases(w)
		case "all":
			listStrategies(w)
			fmt.Fprintln(w)
			listRNGs(w)
			fmt.Fprintln(w)
			listPhases(w)
		default:
			return fmt.Errorf("unknown list %q (want strategies, rngs or phases)", what)
		}
		return w.Flush()
	},
}

func listStrategies(w *tabwriter.Writer) {
	fmt.Fprintln(w, "STRATEGY\tDESCRIPTION")
	desc := map[engine.Strategy]string{
		engine.SingleThread: "one worker visits every cell in order",
		engine.EqualStatic:  "contiguous equal ranges, one per worker",
		engine.OnDemand:     "workers claim blocks of --block-size cells from a shared counter",
		engine.Exclusive:    "contiguous ranges aligned to whole grid rows",
	}
	for _, s := range engine.Strategies() {
		fmt.Fprintf(w, "%s\t%s\n", s, desc[s])
	}
}

func listRNGs(w *tabwriter.Writer) {
	fmt.Fprintln(w, "RNG")
	for _, a := range rng.Algorithms() {
		fmt.Fprintln(w, a)
	}
	fmt.Fprintf(w, "\nKEYING\n%s\n", strings.Join([]string{rng.KeyByWorker.String(), rng.KeyByUnit.String()}, "\n"))
}

func listPhases(w *tabwriter.Writer) {
	reg := systems.NewSystemRegistry()
	fmt.Fprintln(w, "PHASE\tCATEGORY\tDESCRIPTION")
	for _, info := range reg.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.Category, info.Description)
	}
}
