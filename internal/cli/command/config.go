package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/previewshare-go/internal/cli/config"
	"github.com/yndnr/previewshare-go/internal/cli/output"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Local CLI configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the effective connection",
				Action: configShow,
			},
			{
				Name:   "profiles",
				Usage:  "List saved profiles",
				Action: configProfiles,
			},
			{
				Name:      "use",
				Usage:     "Switch the current profile",
				ArgsUsage: "PROFILE",
				Action:    configUse,
			},
			{
				Name:      "set-profile",
				Usage:     "Save a profile without contacting the server",
				ArgsUsage: "PROFILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "server", Required: true, Usage: "Server base URL"},
					&cli.StringFlag{Name: "api-key", Usage: "API key"},
				},
				Action: configSetProfile,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	return s.print(configView{
		ConfigFile: GetConnectionManager(c).Path(),
		Profile:    s.profile,
		Server:     s.client.BaseURL(),
		APIKeySet:  s.apiKey,
		Output:     string(s.format),
		Timeout:    s.timeout.String(),
	})
}

// configView renders the effective connection. The API key itself is
// never printed.
type configView struct {
	ConfigFile string `json:"config_file"`
	Profile    string `json:"profile"`
	Server     string `json:"server"`
	APIKeySet  bool   `json:"api_key_set"`
	Output     string `json:"output"`
	Timeout    string `json:"timeout"`
}

func (v configView) Table(bool) *output.Table {
	return output.KeyValue(
		"config_file", v.ConfigFile,
		"profile", v.Profile,
		"server", v.Server,
		"api_key_set", strconv.FormatBool(v.APIKeySet),
		"output", v.Output,
		"timeout", v.Timeout,
	)
}

func configProfiles(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}
	cfg := mgr.Config()

	t := &output.Table{Headers: []string{"CURRENT", "NAME", "SERVER"}}
	for _, name := range cfg.ProfileNames() {
		mark := ""
		if name == cfg.Current {
			mark = "*"
		}
		t.AddRow(mark, name, cfg.Profiles[name].Server)
	}
	return t.Render(c.App.Writer)
}

func configUse(c *cli.Context) error {
	name, err := argString(c, 0, "profile")
	if err != nil {
		return err
	}
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}
	if err := mgr.Config().Use(name); err != nil {
		return err
	}
	if err := mgr.Save(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Switched to profile %q\n", name)
	return nil
}

func configSetProfile(c *cli.Context) error {
	name, err := argString(c, 0, "profile")
	if err != nil {
		return err
	}
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return fmt.Errorf("connection manager not initialized")
	}
	p := config.Profile{Server: c.String("server"), APIKey: c.String("api-key")}
	if err := mgr.Config().SetProfile(name, p); err != nil {
		return err
	}
	if err := mgr.Save(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Saved profile %q\n", name)
	return nil
}
