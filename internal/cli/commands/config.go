package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/melissa98m/weeb-website-sub000/internal/config"
)

func NewConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					printConfig(cfg)
					return nil
				},
			},
			{
				Name:  "path",
				Usage: "Print the default config file location",
				Action: func(c *cli.Context) error {
					if p := c.String("config"); p != "" {
						fmt.Println(p)
						return nil
					}
					p, err := config.FilePath()
					if err != nil {
						return err
					}
					fmt.Println(p)
					return nil
				},
			},
		},
	}
}

func printConfig(cfg *config.Config) {
	endpoint := cfg.Associations.Endpoint
	if endpoint == "" {
		endpoint = "(probe) " + strings.Join(cfg.Associations.Candidates, ", ")
	}
	password := "(unset)"
	if cfg.DevServer.AdminPassword != "" {
		password = "********"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	fmt.Fprintln(w, "---\t-----")
	fmt.Fprintf(w, "api.base_url\t%s\n", cfg.API.BaseURL)
	fmt.Fprintf(w, "api.timeout\t%s\n", cfg.API.Timeout)
	fmt.Fprintf(w, "associations.endpoint\t%s\n", endpoint)
	fmt.Fprintf(w, "associations.page_size\t%d\n", cfg.Associations.PageSize)
	fmt.Fprintf(w, "reconcile.timeout\t%s\n", cfg.Reconcile.Timeout)
	fmt.Fprintf(w, "reconcile.strict\t%t\n", cfg.Reconcile.Strict)
	fmt.Fprintf(w, "log.level\t%s\n", cfg.Log.Level)
	fmt.Fprintf(w, "log.format\t%s\n", cfg.Log.Format)
	fmt.Fprintf(w, "devserver.addr\t%s\n", cfg.DevServer.Addr)
	fmt.Fprintf(w, "devserver.association_path\t%s\n", cfg.DevServer.AssociationPath)
	fmt.Fprintf(w, "devserver.admin_username\t%s\n", cfg.DevServer.AdminUsername)
	fmt.Fprintf(w, "devserver.admin_password\t%s\n", password)
	w.Flush()
}
