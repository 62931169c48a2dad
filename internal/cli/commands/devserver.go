package commands

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/melissa98m/weeb-website-sub000/internal/devserver"
	"github.com/melissa98m/weeb-website-sub000/internal/logging"
)

func NewDevServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "devserver",
		Usage: "Run a local back-office backend for development and testing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "listen address (overrides devserver.addr)"},
			&cli.StringFlag{Name: "database-url", Usage: "postgres DSN; in-memory storage when empty", EnvVars: []string{"WEEB_DEVSERVER_DATABASE_URL"}},
			&cli.StringFlag{Name: "association-path", Usage: "join resource spelling, \"none\" to omit it"},
			&cli.BoolFlag{Name: "ignore-article-filter", Usage: "make the join list ignore ?article="},
			&cli.BoolFlag{Name: "embed-objects", Usage: "render join rows with nested objects"},
			&cli.IntFlag{Name: "link-page-size", Usage: "cap ?page_size= on the join list, 0 keeps the global cap"},
			&cli.BoolFlag{Name: "no-seed", Usage: "do not create the sample genres"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			defer logger.Sync()

			dc := cfg.DevServer
			if c.IsSet("addr") {
				dc.Addr = c.String("addr")
			}
			if c.IsSet("database-url") {
				dc.DatabaseURL = c.String("database-url")
			}
			if c.IsSet("association-path") {
				dc.AssociationPath = c.String("association-path")
			}
			if strings.EqualFold(dc.AssociationPath, "none") {
				dc.AssociationPath = ""
			}

			var store devserver.Store
			if dc.DatabaseURL != "" {
				gs, err := devserver.OpenPostgres(dc.DatabaseURL, cfg.Log.Level == "debug")
				if err != nil {
					return err
				}
				defer gs.Close()
				store = gs
				logger.Info("using postgres storage")
			} else {
				store = devserver.NewMemoryStore()
				logger.Info("using in-memory storage")
			}

			srv := devserver.New(store, devserver.Options{
				AssociationPath:     strings.Trim(dc.AssociationPath, "/"),
				IgnoreArticleFilter: c.Bool("ignore-article-filter"),
				EmbedObjects:        c.Bool("embed-objects"),
				MaxLinkPageSize:     c.Int("link-page-size"),
			}, logger)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := srv.EnsureAdmin(ctx, dc.AdminUsername, dc.AdminPassword); err != nil {
				return fmt.Errorf("could not create admin user: %w", err)
			}
			if !c.Bool("no-seed") {
				if err := srv.Seed(ctx); err != nil {
					return fmt.Errorf("could not seed genres: %w", err)
				}
			}

			logger.Info("admin account ready", zap.String("username", dc.AdminUsername))
			return srv.Run(ctx, dc.Addr)
		},
	}
}
