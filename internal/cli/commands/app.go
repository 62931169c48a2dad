package commands

import (
	"github.com/urfave/cli/v2"
)

// NewApp assembles the weebctl command tree.
func NewApp(version string) *cli.App {
	return &cli.App{
		Name:                 "weebctl",
		Usage:                "Back-office CLI for the weeb blog: articles, genres and their links",
		Version:              version,
		EnableBashCompletion: true,
		Flags:                GlobalFlags(),
		Commands: []*cli.Command{
			// Session
			NewLoginCommand(),
			NewLogoutCommand(),
			NewWhoamiCommand(),

			// Content
			NewArticleCommand(),
			NewGenreCommand(),

			// Meta
			NewMcpCommand(),
			NewDevServerCommand(),
			NewConfigCommand(),
		},
	}
}
