package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/melissa98m/weeb-website-sub000/internal/mcp"
)

func NewMcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "MCP (Model Context Protocol) server",
		Subcommands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the MCP server on stdio",
				Action: func(c *cli.Context) error {
					e, err := newEnv(c)
					if err != nil {
						return err
					}
					defer e.close()

					srv, err := mcp.NewServer(e.client, e.reconciler(), e.logger)
					if err != nil {
						return err
					}
					return srv.ServeStdio(c.Context)
				},
			},
			{
				Name:  "tools",
				Usage: "List available MCP tools",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
				},
				Action: func(c *cli.Context) error {
					if c.Bool("json") {
						b, err := json.MarshalIndent(mcp.Tools, "", "  ")
						if err != nil {
							return err
						}
						fmt.Println(string(b))
						return nil
					}
					w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
					fmt.Fprintln(w, "TOOL\tMUTATING\tDESCRIPTION")
					fmt.Fprintln(w, "----\t--------\t-----------")
					for _, t := range mcp.Tools {
						mutating := "no"
						if t.Mutating {
							mutating = "yes"
						}
						fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, mutating, t.Description)
					}
					w.Flush()
					return nil
				},
			},
			{
				Name:  "config",
				Usage: "Print an MCP client config snippet",
				Action: func(c *cli.Context) error {
					args := []string{"mcp", "serve"}
					if u := strings.TrimSpace(c.String("api-url")); u != "" {
						args = append([]string{"--api-url", u}, args...)
					}
					cfg := map[string]interface{}{
						"mcpServers": map[string]interface{}{
							"weebctl": map[string]interface{}{
								"command": "weebctl",
								"args":    args,
							},
						},
					}
					b, _ := json.MarshalIndent(cfg, "", "  ")
					fmt.Println(string(b))
					return nil
				},
			},
		},
	}
}
