package command

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokdrop-go/internal/cli/connection"
	"github.com/yndnr/tokdrop-go/internal/cli/output"
)

// fields is an ordered "key: value" reply.
type fields struct {
	keys   []string
	values map[string]string
}

func newFields(lines []string) fields {
	keys, values := connection.ParseFields(lines)
	return fields{keys: keys, values: values}
}

func (f fields) Table() *output.Table {
	pairs := make([]string, 0, 2*len(f.keys))
	for _, k := range f.keys {
		pairs = append(pairs, k, f.values[k])
	}
	return output.KeyValue(pairs...)
}

func (f fields) MarshalYAML() (any, error) {
	return f.values, nil
}

func (f fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.values)
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show record counts of the running bot",
		Action: status,
	}
}

func status(c *cli.Context) error {
	lines, err := socketClient(c).Execute(c.Context, "status")
	if err != nil {
		return err
	}
	return render(c, newFields(lines))
}

// PremiumCommand returns the premium subcommand group.
func PremiumCommand() *cli.Command {
	return &cli.Command{
		Name:  "premium",
		Usage: "Manage premium users",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Grant premium to a Telegram user id",
				ArgsUsage: "USER_ID",
				Action:    premiumAdd,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List premium user ids",
				Action:  premiumList,
			},
		},
	}
}

func premiumAdd(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: tokdrop-cli premium add USER_ID", 2)
	}

	lines, err := socketClient(c).Execute(c.Context, "premium-add", c.Args().First())
	if err != nil {
		return err
	}
	return render(c, strings.Join(lines, "\n"))
}

func premiumList(c *cli.Context) error {
	users, err := socketClient(c).Execute(c.Context, "premium-list")
	if err != nil {
		return err
	}
	if users == nil {
		users = []string{}
	}
	return render(c, users)
}

// tokenInfo is the reply to "token".
type tokenInfo struct {
	ID        string   `json:"id" yaml:"id"`
	Transport string   `json:"transport" yaml:"transport"`
	Created   string   `json:"created" yaml:"created"`
	Expires   string   `json:"expires" yaml:"expires"`
	State     string   `json:"state" yaml:"state"`
	Files     []string `json:"files" yaml:"files"`
}

func (t tokenInfo) Table() *output.Table {
	tbl := output.KeyValue(
		"id", t.ID,
		"transport", t.Transport,
		"created", t.Created,
		"expires", t.Expires,
		"state", t.State,
		"files", fmt.Sprint(len(t.Files)),
	)
	for _, f := range t.Files {
		tbl.AddRow("", f)
	}
	return tbl
}

func parseTokenInfo(lines []string) tokenInfo {
	f := newFields(lines)
	info := tokenInfo{
		ID:        f.values["id"],
		Transport: f.values["transport"],
		Created:   f.values["created"],
		Expires:   f.values["expires"],
		State:     f.values["state"],
		Files:     []string{},
	}
	for _, line := range lines {
		if strings.HasPrefix(line, "  ") {
			info.Files = append(info.Files, strings.TrimSpace(line))
		}
	}
	return info
}

// TokenCommand returns the token subcommand group.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Inspect published tokens",
		Subcommands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Show a token record",
				ArgsUsage: "TOKEN_ID|TRANSPORT",
				Action:    tokenShow,
			},
			{
				Name:      "link",
				Usage:     "Reissue the deep link for a token",
				ArgsUsage: "TOKEN_ID|TRANSPORT",
				Action:    tokenLink,
			},
		},
	}
}

func tokenShow(c *cli.Context) error {
	lines, err := tokenCall(c, "token")
	if err != nil {
		return err
	}
	return render(c, parseTokenInfo(lines))
}

func tokenLink(c *cli.Context) error {
	lines, err := tokenCall(c, "link")
	if err != nil {
		return err
	}
	return render(c, newFields(lines))
}

func tokenCall(c *cli.Context, cmd string) ([]string, error) {
	if c.NArg() != 1 {
		return nil, cli.Exit(fmt.Sprintf("usage: tokdrop-cli token %s TOKEN_ID", c.Command.Name), 2)
	}
	return socketClient(c).Execute(c.Context, cmd, c.Args().First())
}

// HealthCommand returns the health command.
func HealthCommand() *cli.Command {
	return &cli.Command{
		Name:   "health",
		Usage:  "Probe /health and /ready on the ops HTTP server",
		Action: health,
	}
}

// probes lists the probe results.
type probes []*connection.ProbeResult

func (p probes) Table() *output.Table {
	tbl := &output.Table{Headers: []string{"PATH", "CODE", "STATUS"}}
	for _, r := range p {
		s := r.Status
		if s == "" {
			s = r.Code
		}
		tbl.AddRow(r.Path, fmt.Sprint(r.StatusCode), s)
	}
	return tbl
}

func health(c *cli.Context) error {
	client := connection.NewProbeClient(ParseGlobalFlags(c).HTTP)

	var results probes
	healthy := true
	for _, path := range []string{"/health", "/ready"} {
		r, err := client.Probe(c.Context, path)
		if err != nil {
			return err
		}
		healthy = healthy && r.OK()
		results = append(results, r)
	}

	if err := render(c, results); err != nil {
		return err
	}
	if !healthy {
		return cli.Exit("", 1)
	}
	return nil
}
