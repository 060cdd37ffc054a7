package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"disruptiq/internal/detectors"
)

var detectorsCmd = &cobra.Command{
	Use:   "detectors",
	Short: "List the registered detectors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return &exitError{code: exitFailure, err: err}
		}
		reg := detectors.NewDefaultRegistry(detectors.SettingsFromConfig(cfg.Scan.Detectors), detectors.OptionsFromConfig(cfg))

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tLANGUAGES\tSEVERITY\tENABLED")
		for _, d := range reg.Detectors() {
			langs := make([]string, 0, len(d.Languages()))
			for _, l := range d.Languages() {
				langs = append(langs, string(l))
			}
			sev := d.DefaultSeverity()
			if override, ok := reg.Override(d.ID()); ok {
				sev = override
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", d.ID(), d.Kind(), strings.Join(langs, ","), sev, reg.Enabled(d.ID()))
		}
		return tw.Flush()
	},
}
