package command

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/previewshare-go/internal/cli/output"
	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// ResourceCommand returns the resource subcommand group.
func ResourceCommand() *cli.Command {
	return &cli.Command{
		Name:    "resource",
		Aliases: []string{"res"},
		Usage:   "Manage the resource registry (admin)",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List resources",
				Action: resourceList,
			},
			{
				Name:      "put",
				Usage:     "Create or replace a resource",
				ArgsUsage: "RESOURCE_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the resource from a YAML or JSON file; other flags override it",
					},
					&cli.StringFlag{Name: "type", Usage: "Resource type (e.g., post, page)"},
					&cli.StringFlag{Name: "title", Usage: "Resource title"},
					&cli.StringFlag{Name: "state", Usage: "Publication state: publish, draft, pending, future, private, trash"},
					&cli.StringFlag{Name: "owner", Usage: "Owner principal ID"},
					&cli.StringSliceFlag{Name: "editor", Usage: "Principal allowed to edit (repeatable)"},
					&cli.IntFlag{Name: "preview-ttl-hours", Usage: "Per-resource token lifetime override in hours"},
				},
				Action: resourcePut,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete a resource and its tokens",
				ArgsUsage: "RESOURCE_ID",
				Action:    resourceDelete,
			},
		},
	}
}

func resourceList(c *cli.Context) error {
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var list resourceTable
	if err := s.client.Get(ctx, "/admin/v1/resources", &list); err != nil {
		return err
	}
	return s.print(list)
}

// resourceFromFlags builds the resource body from --file and field flags.
func resourceFromFlags(c *cli.Context, id int64) (*domain.Resource, error) {
	res := &domain.Resource{}
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read resource file: %w", err)
		}
		// YAML is a superset of JSON, so one decoder serves both.
		if err := yaml.Unmarshal(data, res); err != nil {
			return nil, fmt.Errorf("parse resource file: %w", err)
		}
		if res.ID != 0 && res.ID != id {
			return nil, fmt.Errorf("resource file id %d does not match %d", res.ID, id)
		}
	}
	res.ID = id

	if c.IsSet("type") {
		res.Type = c.String("type")
	}
	if c.IsSet("title") {
		res.Title = c.String("title")
	}
	if c.IsSet("state") {
		res.State = domain.ResourceState(c.String("state"))
	}
	if c.IsSet("owner") {
		res.OwnerID = c.String("owner")
	}
	if c.IsSet("editor") {
		res.Editors = c.StringSlice("editor")
	}
	if c.IsSet("preview-ttl-hours") {
		ttl := c.Int("preview-ttl-hours")
		res.PreviewTTLHours = &ttl
	}

	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func resourcePut(c *cli.Context) error {
	id, err := argID(c, 0, "resource ID")
	if err != nil {
		return err
	}
	res, err := resourceFromFlags(c, id)
	if err != nil {
		return err
	}
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var out domain.Resource
	if err := s.client.Put(ctx, fmt.Sprintf("/admin/v1/resources/%d", id), res, &out); err != nil {
		return err
	}
	return s.print(resourceTable{out})
}

func resourceDelete(c *cli.Context) error {
	id, err := argID(c, 0, "resource ID")
	if err != nil {
		return err
	}
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var out map[string]any
	if err := s.client.Delete(ctx, fmt.Sprintf("/admin/v1/resources/%d", id), &out); err != nil {
		return err
	}
	if s.format != output.FormatTable {
		return s.print(out)
	}
	s.message("Resource %d deleted.", id)
	return nil
}

// resourceTable renders resources.
type resourceTable []domain.Resource

func (l resourceTable) Table(wide bool) *output.Table {
	t := &output.Table{Headers: []string{"ID", "TYPE", "TITLE", "STATE", "OWNER"}}
	if wide {
		t.Headers = append(t.Headers, "EDITORS", "PREVIEW TTL")
	}
	for _, r := range l {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Type,
			output.Truncate(r.Title, 40),
			string(r.State),
			r.OwnerID,
		}
		if wide {
			ttl := ""
			if r.PreviewTTLHours != nil {
				ttl = strconv.Itoa(*r.PreviewTTLHours) + "h"
			}
			row = append(row, strings.Join(r.Editors, ","), ttl)
		}
		t.AddRow(row...)
	}
	return t
}
