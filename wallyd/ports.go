package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itohio/wally/pkg/console"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "ports lists the serial ports usable for the command console",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ports, err := console.Ports()
		if err != nil {
			return err
		}
		if len(ports) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PORT\tDESCRIPTION")
		for _, p := range ports {
			fmt.Fprintf(w, "%s\t%s\n", p.Name, p.Description)
		}
		return w.Flush()
	},
}
