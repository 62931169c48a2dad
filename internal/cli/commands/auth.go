package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/urfave/cli/v2"

	"github.com/melissa98m/weeb-website-sub000/internal/api"
	"github.com/melissa98m/weeb-website-sub000/internal/config"
)

func NewLoginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Log in to the back-office and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "username",
				Aliases: []string{"u"},
				Usage:   "username (prompted when omitted)",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "password (prompted when omitted)",
				EnvVars: []string{"WEEB_PASSWORD"},
			},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			username := strings.TrimSpace(c.String("username"))
			password := c.String("password")
			if username == "" {
				if err := survey.AskOne(&survey.Input{Message: "Username:"}, &username, survey.WithValidator(survey.Required)); err != nil {
					return fmt.Errorf("could not read username: %w", err)
				}
			}
			if password == "" {
				if err := survey.AskOne(&survey.Password{Message: "Password:"}, &password, survey.WithValidator(survey.Required)); err != nil {
					return fmt.Errorf("could not read password: %w", err)
				}
			}

			user, err := e.client.Login(c.Context, username, password)
			if err != nil {
				return err
			}
			if err := e.saveSession(user.Username); err != nil {
				return err
			}

			fmt.Printf("✅ Logged in as %s\n", user.Username)
			if !user.CanManageContent() {
				fmt.Println("⚠️  This account cannot manage articles or genres.")
			}
			fmt.Printf("🔐 Session stored in %s\n", e.creds.Mode())
			return nil
		},
	}
}

func NewLogoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "End the back-office session and forget it locally",
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			// the local session is dropped even when the backend call fails
			if err := e.client.Logout(c.Context); err != nil && !api.IsForbidden(err) {
				fmt.Printf("⚠️  Backend logout failed: %v\n", err)
			}
			if err := e.creds.Delete(e.cfg.API.BaseURL); err != nil {
				return fmt.Errorf("could not delete stored session: %w", err)
			}
			if err := config.ClearSession(); err != nil {
				return err
			}
			fmt.Println("👋 Logged out.")
			return nil
		},
	}
}

func NewWhoamiCommand() *cli.Command {
	return &cli.Command{
		Name:  "whoami",
		Usage: "Show the logged-in user and their permissions",
		Action: func(c *cli.Context) error {
			e, err := newEnv(c)
			if err != nil {
				return err
			}
			defer e.close()

			user, err := e.client.Me(c.Context)
			if err != nil {
				if api.IsForbidden(err) {
					return errors.New("not logged in, run `weebctl login`")
				}
				return err
			}

			fmt.Printf("👤 %s", user.Username)
			if user.Email != "" {
				fmt.Printf(" <%s>", user.Email)
			}
			fmt.Println()
			fmt.Printf("Backend:  %s\n", e.cfg.API.BaseURL)
			if len(user.Roles) > 0 {
				fmt.Printf("Roles:    %s\n", strings.Join(user.Roles, ", "))
			}
			if user.CanManageContent() {
				fmt.Println("Access:   can manage content")
			} else {
				fmt.Println("Access:   read only")
			}
			if s, err := config.LoadSession(); err == nil && !s.LastLoginAt.IsZero() {
				fmt.Printf("Since:    %s\n", s.LastLoginAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
