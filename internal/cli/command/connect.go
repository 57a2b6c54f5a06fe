package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/previewshare-go/internal/cli/config"
	"github.com/yndnr/previewshare-go/internal/cli/connection"
	"github.com/yndnr/previewshare-go/internal/cli/output"
)

// ConnectCommand returns the connect command.
func ConnectCommand() *cli.Command {
	return &cli.Command{
		Name:      "connect",
		Usage:     "Check a server and save it as a profile",
		ArgsUsage: "SERVER",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Value:   "default",
				Usage:   "Profile name",
			},
			&cli.BoolFlag{
				Name:  "use",
				Value: true,
				Usage: "Make the profile current",
			},
		},
		Action: connectAction,
	}
}

func connectAction(c *cli.Context) error {
	flags := ParseGlobalFlags(c)
	server := c.Args().First()
	if server == "" {
		server = flags.Server
	}
	if server == "" {
		return fmt.Errorf("server required")
	}

	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}

	timeout := flags.Timeout
	if timeout <= 0 {
		timeout = mgr.Config().Timeout
	}
	client := connection.NewHTTPClient(server, flags.APIKey, timeout)

	ctx, cancel := context.WithTimeout(c.Context, timeout)
	defer cancel()
	if err := client.Get(ctx, "/health", nil); err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}

	name := c.String("name")
	cfg := mgr.Config()
	if err := cfg.SetProfile(name, config.Profile{Server: client.BaseURL(), APIKey: flags.APIKey}); err != nil {
		return err
	}
	if c.Bool("use") {
		if err := cfg.Use(name); err != nil {
			return err
		}
	}
	if err := mgr.Save(); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Connected to %s (profile %q saved to %s)\n", client.BaseURL(), name, mgr.Path())
	return nil
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show server liveness and readiness",
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	health := map[string]string{"server": s.client.BaseURL()}
	var live map[string]string
	if err := s.client.Get(ctx, "/health", &live); err != nil {
		return err
	}
	health["health"] = live["status"]

	readyErr := s.client.Get(ctx, "/ready", nil)
	health["ready"] = "ready"
	if readyErr != nil {
		health["ready"] = readyErr.Error()
	}

	if err := s.print(statusView(health)); err != nil {
		return err
	}
	return readyErr
}

// statusView renders server status.
type statusView map[string]string

func (v statusView) Table(bool) *output.Table {
	return output.KeyValue("server", v["server"], "health", v["health"], "ready", v["ready"])
}
