package commands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
)

func NewGenreCommand() *cli.Command {
	return &cli.Command{
		Name:    "genre",
		Aliases: []string{"g"},
		Usage:   "Manage genres",
		Subcommands: []*cli.Command{
			genreListCmd(),
			genreCreateCmd(),
			genreDeleteCmd(),
		},
	}
}

func genreListCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List genres",
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			genres, err := e.client.ListGenres(c.Context)
			if err != nil {
				return err
			}
			if len(genres) == 0 {
				fmt.Println("No genres found. Create one with 'weebctl genre create NAME'.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOLOR")
			fmt.Fprintln(w, "--\t----\t-----")
			for _, g := range genres {
				color := g.Color
				if color == "" {
					color = mutedStyle.Render("-")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", g.ID, genreBadge(g.Name, g.Color), color)
			}
			w.Flush()
			return nil
		},
	}
}

func genreCreateCmd() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a genre",
		ArgsUsage: "[name]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "color", Usage: "badge color as #rrggbb"},
		},
		Action: func(c *cli.Context) error {
			name := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
			if name == "" {
				return fmt.Errorf("genre name is required")
			}
			color := strings.TrimSpace(c.String("color"))
			if color != "" && !hexColor.MatchString(color) {
				return fmt.Errorf("invalid color %q, expected #rrggbb", color)
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			if _, err := e.client.RequireContentManager(c.Context); err != nil {
				return err
			}
			genre, err := e.client.CreateGenre(c.Context, name, color)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Genre %s created successfully! (ID: %d)\n", genreBadge(genre.Name, genre.Color), genre.ID)
			return nil
		},
	}
}

func genreDeleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a genre; its article links are removed with it",
		ArgsUsage: "[genre-id]",
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First(), "genre")
			if err != nil {
				return err
			}
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			if _, err := e.client.RequireContentManager(c.Context); err != nil {
				return err
			}
			if err := e.client.DeleteGenre(c.Context, id); err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("genre %d not found", id)
				}
				return err
			}
			fmt.Printf("🗑️ Genre %d deleted successfully.\n", id)
			return nil
		},
	}
}
