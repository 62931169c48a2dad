package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v2"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
	"github.com/melissa98m/weeb-website-sub000/internal/models"
	"github.com/melissa98m/weeb-website-sub000/internal/reconcile"
)

const defaultArticlePageSize = 10

func NewArticleCommand() *cli.Command {
	return &cli.Command{
		Name:    "article",
		Aliases: []string{"a"},
		Usage:   "Manage articles",
		Subcommands: []*cli.Command{
			articleListCmd(),
			articleShowCmd(),
			articleCreateCmd(),
			articleUpdateCmd(),
			articleDeleteCmd(),
			articleGenresCmd(),
		},
	}
}

func articleListCmd() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List articles",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "filter by text in title or content"},
			&cli.IntFlag{Name: "page", Value: 1, Usage: "page number"},
			&cli.IntFlag{Name: "page-size", Value: defaultArticlePageSize, Usage: "articles per page"},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			page, size := c.Int("page"), c.Int("page-size")
			if page < 1 {
				return fmt.Errorf("invalid page: %d", page)
			}
			if size < 1 {
				return fmt.Errorf("invalid page size: %d", size)
			}

			articles, total, err := e.client.ListArticles(c.Context, api.ListOptions{
				Page:     page,
				PageSize: size,
				Search:   strings.TrimSpace(c.String("search")),
			})
			if err != nil {
				return err
			}

			if len(articles) == 0 {
				fmt.Println("No articles found.")
				return nil
			}

			titleWidth := terminalWidth() - 40
			if titleWidth < 20 {
				titleWidth = 20
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tGENRES\tUPDATED")
			fmt.Fprintln(w, "--\t-----\t------\t-------")
			for _, a := range articles {
				updated := ""
				if a.UpdatedAt != nil {
					updated = a.UpdatedAt.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n",
					a.ID,
					truncateString(a.Title, titleWidth),
					genreLabels(a.Genres),
					updated,
				)
			}
			w.Flush()

			fmt.Printf("\nPage %d/%d (%d articles)\n", page, pageCount(total, size), total)
			return nil
		},
	}
}

func articleShowCmd() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show an article with its rendered content",
		ArgsUsage: "[article-id]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "raw", Usage: "print the content without markdown rendering"},
		},
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First(), "article")
			if err != nil {
				return err
			}
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			article, err := e.client.GetArticle(c.Context, id)
			if err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("article %d not found", id)
				}
				return err
			}

			fmt.Println(headingStyle.Render(fmt.Sprintf("#%d %s", article.ID, article.Title)))
			if labels := genreLabels(article.Genres); labels != "" {
				fmt.Printf("Genres: %s\n", labels)
			}
			if article.ImageURL != "" {
				fmt.Printf("Image:  %s\n", article.ImageURL)
			}
			fmt.Println()

			if c.Bool("raw") {
				fmt.Println(article.Content)
				return nil
			}
			fmt.Print(renderMarkdown(article.Content))
			return nil
		},
	}
}

func articleCreateCmd() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Create an article",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Required: true},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}},
			&cli.StringFlag{Name: "content-file", Usage: "read the content from a file"},
			&cli.StringFlag{Name: "image-url"},
			&cli.Int64SliceFlag{Name: "genre", Aliases: []string{"g"}, Usage: "genre id (repeatable)"},
		},
		Action: func(c *cli.Context) error {
			content, err := contentFromFlags(c)
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
			article, err := e.client.CreateArticle(c.Context, c.String("title"), content, c.String("image-url"))
			if err != nil {
				return err
			}
			fmt.Printf("✅ Article '%s' created successfully! (ID: %d)\n", article.Title, article.ID)

			if ids := c.Int64Slice("genre"); len(ids) > 0 {
				report, err := e.reconciler().Reconcile(c.Context, article.ID, genresFromIDs(ids))
				printReport(os.Stdout, report)
				return err
			}
			return nil
		},
	}
}

func articleUpdateCmd() *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Update an article's title, content or image",
		ArgsUsage: "[article-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
			&cli.StringFlag{Name: "content", Aliases: []string{"c"}},
			&cli.StringFlag{Name: "content-file", Usage: "read the content from a file"},
			&cli.StringFlag{Name: "image-url"},
		},
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First(), "article")
			if err != nil {
				return err
			}

			data := map[string]interface{}{}
			if c.IsSet("title") {
				data["title"] = c.String("title")
			}
			if c.IsSet("content") || c.IsSet("content-file") {
				content, err := contentFromFlags(c)
				if err != nil {
					return err
				}
				data["content"] = content
			}
			if c.IsSet("image-url") {
				data["image_url"] = c.String("image-url")
			}
			if len(data) == 0 {
				return errors.New("nothing to update, pass --title, --content or --image-url")
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			if _, err := e.client.RequireContentManager(c.Context); err != nil {
				return err
			}
			article, err := e.client.UpdateArticle(c.Context, id, data)
			if err != nil {
				return err
			}
			fmt.Printf("✅ Article '%s' updated successfully!\n", article.Title)
			return nil
		},
	}
}

func articleDeleteCmd() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete an article",
		ArgsUsage: "[article-id]",
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First(), "article")
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
			if err := e.client.DeleteArticle(c.Context, id); err != nil {
				return err
			}
			fmt.Printf("🗑️ Article %d deleted successfully.\n", id)
			return nil
		},
	}
}

func articleGenresCmd() *cli.Command {
	return &cli.Command{
		Name:      "genres",
		Usage:     "Set an article's genres to exactly the given genre ids",
		ArgsUsage: "[article-id] [genre-id...]",
		Description: "Genres not listed are removed. Pass only the article id with --clear to remove\n" +
			"every genre, or --interactive to pick from the genre list.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "pick genres from a list"},
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "show the changes without applying them"},
			&cli.BoolFlag{Name: "clear", Usage: "remove every genre"},
		},
		Action: func(c *cli.Context) error {
			id, err := parseID(c.Args().First(), "article")
			if err != nil {
				return err
			}

			var ids []int64
			for _, arg := range c.Args().Tail() {
				gid, err := parseID(arg, "genre")
				if err != nil {
					return err
				}
				ids = append(ids, gid)
			}

			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			switch {
			case c.Bool("interactive"):
				if ids, err = pickGenres(c, e, id); err != nil {
					return err
				}
			case len(ids) == 0 && !c.Bool("clear"):
				return errors.New("no genre ids given, pass --clear to remove every genre")
			}

			rec := e.reconciler()
			if c.Bool("dry-run") {
				report, err := rec.Plan(c.Context, id, genresFromIDs(ids))
				if err != nil {
					return err
				}
				printPlan(os.Stdout, report)
				return nil
			}

			if _, err := e.client.RequireContentManager(c.Context); err != nil {
				return err
			}
			report, err := rec.Reconcile(c.Context, id, genresFromIDs(ids))
			printReport(os.Stdout, report)
			return err
		},
	}
}

// pickGenres prompts for the article's genres, preselecting the current ones.
func pickGenres(c *cli.Context, e *env, articleID int64) ([]int64, error) {
	genres, err := e.client.ListGenres(c.Context)
	if err != nil {
		return nil, err
	}
	if len(genres) == 0 {
		return nil, errors.New("no genres exist yet, create one with `weebctl genre create`")
	}
	article, err := e.client.GetArticle(c.Context, articleID)
	if err != nil {
		return nil, err
	}
	current := map[int64]bool{}
	for _, gid := range article.GenreIDs() {
		current[gid] = true
	}

	options := make([]string, 0, len(genres))
	byOption := make(map[string]int64, len(genres))
	var defaults []string
	for _, g := range genres {
		opt := fmt.Sprintf("%s (#%d)", g.Name, g.ID)
		options = append(options, opt)
		byOption[opt] = g.ID
		if current[g.ID] {
			defaults = append(defaults, opt)
		}
	}

	var selected []string
	prompt := &survey.MultiSelect{
		Message:  fmt.Sprintf("Genres for '%s':", article.Title),
		Options:  options,
		Default:  defaults,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return nil, fmt.Errorf("genre selection cancelled: %w", err)
	}

	ids := make([]int64, 0, len(selected))
	for _, opt := range selected {
		ids = append(ids, byOption[opt])
	}
	return ids, nil
}

func contentFromFlags(c *cli.Context) (string, error) {
	if path := c.String("content-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("could not read content file: %w", err)
		}
		return string(data), nil
	}
	return c.String("content"), nil
}

func genresFromIDs(ids []int64) []models.Genre {
	genres := make([]models.Genre, 0, len(ids))
	for _, id := range ids {
		genres = append(genres, models.Genre{ID: id})
	}
	return genres
}

func genreLabels(refs []models.Ref) string {
	labels := make([]string, 0, len(refs))
	for _, ref := range refs {
		if name := ref.Name(); name != "" {
			labels = append(labels, name)
		} else if id, ok := ref.Resolve(); ok {
			labels = append(labels, fmt.Sprintf("#%d", id))
		}
	}
	sort.Strings(labels)
	return strings.Join(labels, ", ")
}

func renderMarkdown(content string) string {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(terminalWidth()-4),
	)
	if err != nil {
		return content + "\n"
	}
	out, err := renderer.Render(content)
	if err != nil {
		return content + "\n"
	}
	return out
}

func printPlan(w io.Writer, report *reconcile.Report) {
	fmt.Fprintf(w, "📋 Article %d: %s\n", report.ArticleID, describeEndpoint(report))
	fmt.Fprintf(w, "Current: %s\n", idList(report.Observed))
	fmt.Fprintf(w, "Wanted:  %s\n", idList(report.Desired))
	if report.Unattributed > 0 {
		fmt.Fprintf(w, "ℹ️  %d returned rows did not belong to this article and were ignored.\n", report.Unattributed)
	}
	if report.Plan.Empty() {
		fmt.Fprintln(w, "Nothing to change.")
		return
	}
	for _, gid := range report.Plan.ToAdd {
		fmt.Fprintf(w, "  + genre %d\n", gid)
	}
	for _, rm := range report.Plan.ToRemove {
		fmt.Fprintf(w, "  - genre %d\n", rm.Genre)
	}
}

func printReport(w io.Writer, report *reconcile.Report) {
	if report == nil {
		return
	}
	printPlan(w, report)
	if report.Attempted() == 0 && len(report.Skipped) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, o := range report.Applied {
		fmt.Fprintf(w, "✅ %s\n", o)
	}
	for _, o := range report.Failed {
		fmt.Fprintf(w, "❌ %s: %s\n", o, o.Reason)
	}
	for _, o := range report.Skipped {
		fmt.Fprintf(w, "⏭️  %s: %s\n", o, o.Reason)
	}
	if err := report.Err(); err != nil {
		fmt.Fprintf(w, "⚠️  %v\n", err)
	}
}

func describeEndpoint(report *reconcile.Report) string {
	if report.Fallback {
		return "no association endpoint, using the article's genre list"
	}
	return "endpoint " + report.Endpoint
}

func idList(ids []int64) string {
	if len(ids) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%d", id))
	}
	return strings.Join(parts, ", ")
}
