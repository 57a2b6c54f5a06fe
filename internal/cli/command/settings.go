package command

import (
	"errors"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/previewshare-go/internal/cli/output"
	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// SettingsCommand returns the settings subcommand group.
func SettingsCommand() *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "View and change runtime settings (admin)",
		Subcommands: []*cli.Command{
			{
				Name:   "get",
				Usage:  "Show current settings",
				Action: settingsGet,
			},
			{
				Name:  "set",
				Usage: "Change one or more settings",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "default-ttl-hours",
						Usage: "Default token lifetime in hours (0 = never expires)",
					},
					&cli.BoolFlag{
						Name:  "enable-logging",
						Usage: "Log token lifecycle events",
					},
					&cli.BoolFlag{
						Name:  "enable-caching",
						Usage: "Cache token resolutions",
					},
					&cli.StringFlag{
						Name:  "reissue-strategy",
						Usage: "What issuing does to a resource's current token: replace or refresh",
					},
				},
				Action: settingsSet,
			},
		},
	}
}

func settingsGet(c *cli.Context) error {
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var st settingsView
	if err := s.client.Get(ctx, "/admin/v1/settings", &st); err != nil {
		return err
	}
	return s.print(st)
}

// settingsPatch builds a patch from the flags that were given.
func settingsPatch(c *cli.Context) (domain.SettingsPatch, error) {
	var p domain.SettingsPatch
	if c.IsSet("default-ttl-hours") {
		v := c.Int("default-ttl-hours")
		p.DefaultTTLHours = &v
	}
	if c.IsSet("enable-logging") {
		v := c.Bool("enable-logging")
		p.EnableLogging = &v
	}
	if c.IsSet("enable-caching") {
		v := c.Bool("enable-caching")
		p.EnableCaching = &v
	}
	if c.IsSet("reissue-strategy") {
		v := domain.ReissueStrategy(c.String("reissue-strategy"))
		if !v.Valid() {
			return p, errors.New("reissue-strategy must be replace or refresh")
		}
		p.ReissueStrategy = &v
	}
	if p == (domain.SettingsPatch{}) {
		return p, errors.New("no settings given")
	}
	return p, nil
}

func settingsSet(c *cli.Context) error {
	patch, err := settingsPatch(c)
	if err != nil {
		return err
	}
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var st settingsView
	if err := s.client.Post(ctx, "/admin/v1/settings", patch, &st); err != nil {
		return err
	}
	return s.print(st)
}

// settingsView renders settings.
type settingsView domain.Settings

func (v settingsView) Table(bool) *output.Table {
	return output.KeyValue(
		"default_ttl_hours", strconv.Itoa(v.DefaultTTLHours),
		"enable_logging", strconv.FormatBool(v.EnableLogging),
		"enable_caching", strconv.FormatBool(v.EnableCaching),
		"reissue_strategy", string(v.ReissueStrategy),
	)
}
