package command

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/previewshare-go/internal/cli/output"
	"github.com/yndnr/previewshare-go/internal/server/httpserver/handler"
)

// TokenCommand returns the token subcommand group.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:    "token",
		Aliases: []string{"tok"},
		Usage:   "Manage preview tokens",
		Subcommands: []*cli.Command{
			{
				Name:      "issue",
				Usage:     "Issue a preview token for a resource",
				ArgsUsage: "RESOURCE_ID",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "ttl-hours",
						Aliases: []string{"t"},
						Usage:   "Token lifetime in hours (0 = never expires)",
					},
				},
				Action: tokenIssue,
			},
			{
				Name:      "resolve",
				Usage:     "Resolve a raw token to its resource",
				ArgsUsage: "TOKEN",
				Action:    tokenResolve,
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a raw token",
				ArgsUsage: "TOKEN",
				Action:    tokenRevoke,
			},
			{
				Name:      "latest",
				Usage:     "Show the most recent token of a resource",
				ArgsUsage: "RESOURCE_ID",
				Action:    tokenLatest,
			},
			{
				Name:  "list",
				Usage: "List all tokens (admin)",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "page",
						Value: 1,
						Usage: "Page number",
					},
					&cli.IntFlag{
						Name:  "per-page",
						Value: 50,
						Usage: "Page size (max 200)",
					},
				},
				Action: tokenList,
			},
			{
				Name:      "revoke-id",
				Usage:     "Revoke a token by record ID (admin)",
				ArgsUsage: "TOKEN_ID",
				Action:    tokenRevokeByID,
			},
		},
	}
}

func tokenIssue(c *cli.Context) error {
	id, err := argID(c, 0, "resource ID")
	if err != nil {
		return err
	}
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	req := handler.IssueTokenRequest{ResourceID: id}
	if c.IsSet("ttl-hours") {
		ttl := c.Int("ttl-hours")
		req.TTLHours = &ttl
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var resp issuedToken
	if err := s.client.Post(ctx, "/v1/tokens", req, &resp); err != nil {
		return err
	}
	return s.print(resp)
}

func tokenResolve(c *cli.Context) error {
	raw, err := argString(c, 0, "token")
	if err != nil {
		return err
	}
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var resp handler.ResolveResponse
	if err := s.client.Get(ctx, "/preview/"+url.PathEscape(raw), &resp); err != nil {
		return err
	}
	if s.format == output.FormatTable {
		return s.print(output.KeyValue("resource_id", strconv.FormatInt(resp.ResourceID, 10)))
	}
	return s.print(resp)
}

func tokenRevoke(c *cli.Context) error {
	raw, err := argString(c, 0, "token")
	if err != nil {
		return err
	}
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var resp handler.RevokeResponse
	if err := s.client.Post(ctx, "/v1/tokens/revoke", handler.RevokeTokenRequest{Token: raw}, &resp); err != nil {
		return err
	}
	return printRevoke(s, resp)
}

func tokenRevokeByID(c *cli.Context) error {
	id, err := argString(c, 0, "token ID")
	if err != nil {
		return err
	}
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var resp handler.RevokeResponse
	if err := s.client.Post(ctx, "/admin/v1/tokens/"+url.PathEscape(id)+"/revoke", nil, &resp); err != nil {
		return err
	}
	return printRevoke(s, resp)
}

func printRevoke(s *Session, resp handler.RevokeResponse) error {
	if s.format != output.FormatTable {
		return s.print(resp)
	}
	if resp.Revoked {
		s.message("Token revoked.")
	} else {
		s.message("Token was already revoked or unknown.")
	}
	return nil
}

func tokenLatest(c *cli.Context) error {
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

	var resp tokenView
	if err := s.client.Get(ctx, fmt.Sprintf("/v1/resources/%d/token", id), &resp); err != nil {
		return err
	}
	return s.print(resp)
}

func tokenList(c *cli.Context) error {
	s, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(c.Int("page")))
	q.Set("per_page", strconv.Itoa(c.Int("per-page")))

	ctx, cancel := s.requestContext(c)
	defer cancel()

	var resp tokenPage
	if err := s.client.Get(ctx, "/admin/v1/tokens?"+q.Encode(), &resp); err != nil {
		return err
	}
	return s.print(resp)
}

// issuedToken renders an issue response.
type issuedToken handler.IssueTokenResponse

func (t issuedToken) Table(bool) *output.Table {
	return output.KeyValue(
		"id", t.ID,
		"token", t.Token,
		"url", t.URL,
		"resource_id", strconv.FormatInt(t.ResourceID, 10),
		"expires_at", output.Millis(t.ExpiresAt),
		"replaced", strconv.Itoa(t.Replaced),
	)
}

// tokenView renders token metadata.
type tokenView handler.TokenResponse

func (t tokenView) Table(bool) *output.Table {
	return output.KeyValue(
		"id", t.ID,
		"resource_id", strconv.FormatInt(t.ResourceID, 10),
		"resource_title", t.ResourceTitle,
		"issuer_id", t.IssuerID,
		"status", t.Status,
		"created_at", output.Millis(t.CreatedAt),
		"expires_at", output.Millis(t.ExpiresAt),
	)
}

// tokenPage renders a page of tokens.
type tokenPage handler.ListTokensResponse

func (l tokenPage) Table(wide bool) *output.Table {
	t := &output.Table{Headers: []string{"TOKEN ID", "RESOURCE", "TITLE", "STATUS", "EXPIRES"}}
	if wide {
		t.Headers = append(t.Headers, "ISSUER", "CREATED")
	}
	for _, item := range l.Items {
		row := []string{
			item.ID,
			strconv.FormatInt(item.ResourceID, 10),
			output.Truncate(item.ResourceTitle, 32),
			item.Status,
			output.Millis(item.ExpiresAt),
		}
		if wide {
			row = append(row, item.IssuerID, output.Millis(item.CreatedAt))
		}
		t.AddRow(row...)
	}
	t.Footer = fmt.Sprintf("Page %d, %d of %d tokens", l.Page, len(l.Items), l.Total)
	return t
}
