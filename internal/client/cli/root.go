// Package cli implements the user portal admin command line on top of the
// HTTP API: login, user listing and lookup, password reset and deletion.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/userportal/internal/client/api"
	"github.com/dmitrijs2005/userportal/internal/client/config"
	"github.com/spf13/cobra"
)

type App struct {
	config *config.Config
	client *api.Client
	tokens *TokenStore
	reader *bufio.Reader
	out    io.Writer
}

type rootFlags struct {
	configPath string
	server     string
	tokenFile  string
}

// NewRootCommand builds the command tree. Prompts read from in and all
// output goes to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	app := &App{reader: bufio.NewReader(in), out: out}
	var flags rootFlags

	root := &cobra.Command{
		Use:           "upcli",
		Short:         "User portal admin CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.init(flags)
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to JSON config file")
	pf.StringVarP(&flags.server, "server", "s", "", "server base URL")
	pf.StringVar(&flags.tokenFile, "token-file", "", "where the session token is kept")

	root.AddCommand(
		app.loginCommand(),
		app.logoutCommand(),
		app.listCommand(),
		app.findCommand(),
		app.resetPasswordCommand(),
		app.deleteCommand(),
	)
	return root
}

func (a *App) init(f rootFlags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.server != "" {
		cfg.ServerURL = f.server
	}
	if f.tokenFile != "" {
		cfg.TokenFile = f.tokenFile
	}

	a.config = cfg
	a.client = api.New(cfg.ServerURL, &http.Client{Timeout: cfg.Timeout})
	a.tokens = NewTokenStore(cfg.TokenFile)
	return nil
}

// authenticate loads the stored token into the client.
func (a *App) authenticate() error {
	token, err := a.tokens.Load()
	if err != nil {
		return err
	}
	a.client.SetToken(token)
	return nil
}

// sessionError turns a 401 into a hint to log in again.
func sessionError(err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		return fmt.Errorf("%w (run 'login' again)", err)
	}
	return err
}

func (a *App) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the session token",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var username string
			if len(args) == 1 {
				username = args[0]
			} else {
				var err error
				if username, err = GetSimpleText(a.reader, "Username", a.out); err != nil {
					return err
				}
			}

			password, err := GetPassword(a.out)
			if err != nil {
				return err
			}

			token, u, err := a.client.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if err := a.tokens.Save(token); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", u.Username, u.Role)
			return nil
		},
	}
}

func (a *App) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.tokens.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *App) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.authenticate(); err != nil {
				return err
			}
			users, err := a.client.ListUsers(cmd.Context())
			if err != nil {
				return sessionError(err)
			}
			return printUsers(a.out, users)
		},
	}
}

func (a *App) findCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "find <username>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.authenticate(); err != nil {
				return err
			}
			u, err := a.client.FindUser(cmd.Context(), args[0])
			if err != nil {
				return sessionError(err)
			}
			return printUsers(a.out, []api.User{*u})
		},
	}
}

func (a *App) resetPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-password <email>",
		Short: "Generate a new password and mail it to the user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.authenticate(); err != nil {
				return err
			}
			msg, err := a.client.ResetPassword(cmd.Context(), args[0])
			if err != nil {
				return sessionError(err)
			}
			fmt.Fprintln(a.out, msg)
			return nil
		},
	}
}

func (a *App) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user and their profile images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.authenticate(); err != nil {
				return err
			}
			if err := a.client.DeleteUser(cmd.Context(), args[0]); err != nil {
				return sessionError(err)
			}
			fmt.Fprintf(a.out, "Deleted %s\n", args[0])
			return nil
		},
	}
}

func printUsers(w io.Writer, users []api.User) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tNAME\tEMAIL\tROLE\tACTIVE\tLOCKED\tLAST LOGIN")
	for _, u := range users {
		last := "-"
		if u.LastLoginDateDisplay != nil {
			last = u.LastLoginDateDisplay.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\t%s\t%s\t%s\n",
			u.Username, u.FirstName, u.LastName, u.Email, u.Role,
			strconv.FormatBool(u.Active), strconv.FormatBool(u.Locked), last)
	}
	return tw.Flush()
}
