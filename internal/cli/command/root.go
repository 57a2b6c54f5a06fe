package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/previewshare-go/internal/cli/config"
	"github.com/yndnr/previewshare-go/internal/cli/connection"
	"github.com/yndnr/previewshare-go/internal/cli/output"
	"github.com/yndnr/previewshare-go/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "previewshare-cli",
		Usage:   "PreviewShare command-line management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			TokenCommand(),
			SettingsCommand(),
			ResourceCommand(),
			ConnectCommand(),
			StatusCommand(),
			ConfigCommand(),
		},
		Before: func(c *cli.Context) error {
			path := c.String("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			c.App.Metadata["connMgr"] = connection.NewManager(cfg, path)
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
// Environment variables are applied by config.EnvOverrides so they layer
// between the profile and explicit flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "CLI config file (default ~/.previewshare/cli.yaml)",
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Saved connection profile to use",
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server base URL (e.g., http://127.0.0.1:5080)",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"k"},
			Usage:   "API key for authentication",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigPath string
	Profile    string
	Server     string
	APIKey     string
	Output     string
	Wide       bool
	Timeout    time.Duration
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		ConfigPath: c.String("config"),
		Profile:    c.String("profile"),
		Server:     c.String("server"),
		APIKey:     c.String("api-key"),
		Output:     c.String("output"),
		Wide:       c.Bool("wide"),
		Timeout:    c.Duration("timeout"),
	}
}

// overrides returns the flag layer.
func (f *GlobalFlags) overrides() config.Overrides {
	return config.Overrides{
		Server:  f.Server,
		APIKey:  f.APIKey,
		Output:  f.Output,
		Timeout: f.Timeout,
	}
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata["connMgr"].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// Session is the resolved connection for one command invocation.
type Session struct {
	client  *connection.HTTPClient
	profile string
	apiKey  bool
	format  output.Format
	wide    bool
	timeout time.Duration
	out     io.Writer
}

// EnsureConnected resolves the connection for this invocation.
func EnsureConnected(c *cli.Context) (*Session, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}

	flags := ParseGlobalFlags(c)
	env, err := config.EnvOverrides(os.Getenv)
	if err != nil {
		return nil, err
	}
	client, r, err := mgr.Resolve(flags.Profile, env, flags.overrides())
	if err != nil {
		return nil, err
	}
	format, err := output.ParseFormat(r.Output)
	if err != nil {
		return nil, err
	}

	profile := flags.Profile
	if profile == "" {
		profile = mgr.Config().Current
	}

	return &Session{
		client:  client,
		profile: profile,
		apiKey:  r.APIKey != "",
		format:  format,
		wide:    flags.Wide,
		timeout: r.Timeout,
		out:     c.App.Writer,
	}, nil
}

// requestContext returns a request context bounded by the session timeout.
func (s *Session) requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, s.timeout)
}

// print renders data in the session's output format.
func (s *Session) print(data any) error {
	return output.NewFormatter(s.format, s.wide).Format(s.out, data)
}

// message writes a human-readable line, suppressed for machine formats.
func (s *Session) message(format string, args ...any) {
	if s.format == output.FormatTable {
		fmt.Fprintf(s.out, format+"\n", args...)
	}
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}

// argID parses the positional argument at i as a resource ID.
func argID(c *cli.Context, i int, name string) (int64, error) {
	s := c.Args().Get(i)
	if s == "" {
		return 0, fmt.Errorf("%s required", name)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return id, nil
}

// argString returns the positional argument at i or an error naming it.
func argString(c *cli.Context, i int, name string) (string, error) {
	s := c.Args().Get(i)
	if s == "" {
		return "", fmt.Errorf("%s required", name)
	}
	return s, nil
}
