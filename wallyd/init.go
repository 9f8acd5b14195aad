package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/itohio/wally/pkg/config"
)

func initFlags(f *pflag.FlagSet) {
	f.Bool("print", false, "print config to stdout")
	f.BoolP("yes", "y", false, "overwrite")
	f.StringP("output", "o", defaultConfig, "output path")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "init writes a configuration template",
	Long: `init writes the default configuration.
If --print is present the configuration is printed to stdout instead.
An existing file is only replaced with --yes.`,
	Example: `  wallyd init --print
  wallyd init -o /etc/wally/config.yaml -y`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()

	if p, _ := cmd.Flags().GetBool("print"); p {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	yes, _ := cmd.Flags().GetBool("yes")
	if _, err := os.Stat(output); err == nil && !yes {
		return fmt.Errorf("%s exists, use --yes to overwrite", output)
	}

	if err := cfg.Save(output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", output)
	return nil
}
