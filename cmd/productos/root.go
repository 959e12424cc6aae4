package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/client"
	"github.com/xenking/productos/internal/session"
)

// cli carries state shared by subcommands.
type cli struct {
	cfg    *client.Config
	lg     *zap.Logger
	client *client.Client
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	// Flag overrides, applied when set.
	baseURL   string
	stateFile string
	logLevel  string
	insecure  bool

	// Tests inject a store instead of the state file.
	store session.Store
}

// navigator turns session navigation into hints on stderr.
type navigator struct {
	w io.Writer
}

func (n navigator) ToProducts() {}

func (n navigator) ToLogin() {
	fmt.Fprintln(n.w, "Not logged in. Run `productos login` first.")
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&cli{})
}

func newRootCmdWith(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "productos",
		Short:         "Manage the product catalog of a remote API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.lg != nil {
				_ = c.lg.Sync()
			}
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&c.baseURL, "base-url", "", "remote API base URL (PRODUCTOS_BASE_URL)")
	f.StringVar(&c.stateFile, "state-file", "", "session state file (PRODUCTOS_STATE_FILE)")
	f.StringVar(&c.logLevel, "log-level", "", "log level (PRODUCTOS_LOG_LEVEL)")
	f.BoolVar(&c.insecure, "insecure", false, "skip TLS certificate verification (PRODUCTOS_INSECURE)")

	root.AddCommand(
		newLoginCmd(c),
		newLogoutCmd(c),
		newStatusCmd(c),
		newListCmd(c),
		newCategoriesCmd(c),
		newAddCmd(c),
		newEditCmd(c),
		newDeleteCmd(c),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	c.in = bufio.NewReader(cmd.InOrStdin())
	c.out = cmd.OutOrStdout()
	c.errOut = cmd.ErrOrStderr()

	if c.cfg == nil {
		cfg, err := client.LoadConfig()
		if err != nil {
			return err
		}
		c.cfg = cfg
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		c.cfg.BaseURL = c.baseURL
	}
	if flags.Changed("state-file") {
		c.cfg.StateFile = c.stateFile
	}
	if flags.Changed("log-level") {
		c.cfg.LogLevel = c.logLevel
	}
	if flags.Changed("insecure") {
		c.cfg.Insecure = c.insecure
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	lg, err := client.NewLogger(c.cfg.LogLevel)
	if err != nil {
		return err
	}
	c.lg = lg

	cl, err := client.New(c.cfg, client.Options{
		Logger:    lg,
		Navigator: navigator{w: c.errOut},
		Store:     c.store,
	})
	if err != nil {
		return err
	}
	c.client = cl
	return nil
}

// prompt reads one line after printing label.
func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.errOut, label)
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", errors.Wrap(err, "read input")
	}
	return strings.TrimSpace(line), nil
}
