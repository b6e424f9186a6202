package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"im3viewer/pkg/loader"
)

var listWorkers int

// listCmd prints the cubes found in a directory
var listCmd = &cobra.Command{
	Use:   "list <dir>",
	Short: "Load every cube in a directory and print its dimensions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			cfg.Loader.Workers = listWorkers
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		dec, err := cfg.NewDecoder()
		if err != nil {
			return err
		}
		if err := dec.Open(); err != nil {
			return fmt.Errorf("failed to open decoder: %w", err)
		}
		defer dec.Close()

		l := loader.NewLoader(dec, cfg.LoaderParams(), newLogger(cfg))
		cubes, err := l.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(cubes) == 0 {
			fmt.Fprintf(out, "No cubes matching %s in %s\n", cfg.Loader.Pattern, args[0])
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "FILE\tROWS\tCOLS\tBANDS")
		for _, name := range cubes.Names() {
			c := cubes[name]
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", name, c.Rows, c.Cols, c.Bands)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().IntVarP(&listWorkers, "workers", "w", 1, "Number of cubes decoded in parallel")
}
