// Command wallyctl talks to a running wally device.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/itohio/wally/pkg/client"
	"github.com/itohio/wally/pkg/config"
	"github.com/itohio/wally/pkg/daq"
)

var rootCmd = &cobra.Command{
	Use:           "wallyctl",
	Short:         "query and command a wally device",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func rootFlags(cmd *cobra.Command) {
	def := config.Default().Client
	f := cmd.PersistentFlags()
	f.StringP("config", "c", "", "configuration file path (client section)")
	f.StringP("address", "a", def.Address, "device address")
	f.Duration("interval", def.Interval, "watch poll interval")
	f.Duration("timeout", def.Timeout, "request timeout")
	f.Int("retries", def.RetryAttempts, "consecutive failures before giving up")
	f.Bool("debug", false, "toggle debug logging")
}

// clientConfig resolves flags over WALLY_CLIENT_* variables over the
// configuration file.
func clientConfig(cmd *cobra.Command) (client.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	if file == "" {
		file = os.Getenv("WALLY_CONFIG")
	}

	cc := config.Default().Client
	if file != "" {
		cfg, err := config.Load(file)
		if err != nil {
			return client.Config{}, err
		}
		cc = cfg.Client
	}

	v := viper.New()
	v.SetEnvPrefix("wally")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlag("client.address", cmd.Flags().Lookup("address"))
	_ = v.BindPFlag("client.interval", cmd.Flags().Lookup("interval"))
	_ = v.BindPFlag("client.timeout", cmd.Flags().Lookup("timeout"))
	_ = v.BindPFlag("client.retry_attempts", cmd.Flags().Lookup("retries"))

	if v.IsSet("client.address") {
		cc.Address = v.GetString("client.address")
	}
	if v.IsSet("client.interval") {
		cc.Interval = v.GetDuration("client.interval")
	}
	if v.IsSet("client.timeout") {
		cc.Timeout = v.GetDuration("client.timeout")
	}
	if v.IsSet("client.retry_attempts") {
		cc.RetryAttempts = v.GetInt("client.retry_attempts")
	}

	return client.Config{
		Address:       cc.Address,
		Interval:      cc.Interval,
		Timeout:       cc.Timeout,
		RetryAttempts: cc.RetryAttempts,
	}, nil
}

func newClient(cmd *cobra.Command) (*client.Client, error) {
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		log.SetLevel(log.DebugLevel)
	}
	cfg, err := clientConfig(cmd)
	if err != nil {
		return nil, err
	}
	return client.New(cfg), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// connect builds the client and pings the device before anything else is sent.
func connect(cmd *cobra.Command) (*client.Client, error) {
	c, err := newClient(cmd)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(cmd.Context()); err != nil {
		return nil, err
	}
	return c, nil
}

// query builds a command that connects and prints one payload.
func query(use, short string, get func(context.Context, *client.Client) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := connect(cmd)
			if err != nil {
				return err
			}
			v, err := get(cmd.Context(), c)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "check that the device answers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := newClient(cmd)
		if err != nil {
			return err
		}
		start := time.Now()
		if err := c.Ping(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pong from %s in %s\n", c.BaseURL(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var sensorsCmd = query("sensors", "print a reading of every sensor", func(ctx context.Context, c *client.Client) (any, error) {
	return c.Sensors(ctx)
})

var statusCmd = query("status", "print device health", func(ctx context.Context, c *client.Client) (any, error) {
	return c.Status(ctx)
})

var vernierCmd = query("vernier", "print the acquisition state", func(ctx context.Context, c *client.Client) (any, error) {
	return c.VernierStatus(ctx)
})

var activeCmd = query("active", "print a reading of the selected sensor", func(ctx context.Context, c *client.Client) (any, error) {
	a, err := c.Active(ctx)
	if err != nil {
		return nil, err
	}
	if a.Paused != nil {
		return a.Paused, nil
	}
	return a.Reading, nil
})

var commandCmd = &cobra.Command{
	Use:   "command <t|f|p|m|d|c>",
	Short: "send a single-character command",
	Example: `  wallyctl command f
  wallyctl command d`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		res, err := c.Command(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if res.Error {
			return fmt.Errorf("device rejected command %q", args[0])
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "poll all sensors until interrupted or disconnected",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		return c.Watch(cmd.Context(), func(rep daq.Report) {
			printReport(out, rep)
		})
	},
}

var contractCmd = &cobra.Command{
	Use:   "contract",
	Short: "check the device against the wire contract",
	Long: `contract replays the request sequence every device must answer identically
and reports the first deviation per request. It changes the acquisition state,
so run it against a freshly started device.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := connect(cmd)
		if err != nil {
			return err
		}
		if err := c.Verify(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s satisfies the contract\n", c.BaseURL())
		return nil
	},
}

func main() {
	rootFlags(rootCmd)
	rootCmd.AddCommand(pingCmd, sensorsCmd, statusCmd, vernierCmd, activeCmd, commandCmd, watchCmd, contractCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.WithError(err).Error("wallyctl failed")
		os.Exit(1)
	}
}
