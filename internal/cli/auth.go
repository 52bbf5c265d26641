package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/shoplist/internal/app"
	"github.com/idilsaglam/shoplist/internal/identity"
	"github.com/idilsaglam/shoplist/internal/ui"
)

func authCommands(e *env) []*cobra.Command {
	login := &cobra.Command{
		Use:   "login [token]",
		Short: "Sign in with a token (read from stdin when omitted)",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				fmt.Fprint(cmd.OutOrStdout(), "Paste your token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return usagef("login: empty token")
			}
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			id, err := c.SignIn(cmd.Context(), token)
			if err != nil {
				return &usageError{msg: "sign in: " + err.Error()}
			}
			ui.OK(cmd.OutOrStdout(), "signed in as "+displayName(id))
			activeHint(cmd, c)
			return nil
		},
	}

	guest := &cobra.Command{
		Use:   "guest",
		Short: "Continue as an anonymous guest",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := c.SignInAnonymously(cmd.Context()); err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), "signed in as guest")
			activeHint(cmd, c)
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout",
		Short: "Sign out on this device",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			if id := c.Identity(); id != nil && id.Source == "env" {
				ui.OK(cmd.OutOrStdout(), "token is provided by "+identity.EnvToken+" env var (nothing to delete)")
				return nil
			}
			if err := c.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			ui.OK(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}

	whoami := &cobra.Command{
		Use:     "whoami",
		Aliases: []string{"status"},
		Short:   "Show who is signed in and which list is active",
		Args:    exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			muted := ui.Current().Muted
			id := c.Identity()
			if id == nil {
				fmt.Fprintln(out, ui.C(muted, "not signed in"))
				fmt.Fprintln(out, "Run: shoplist login  or  shoplist guest")
			} else {
				fmt.Fprintf(out, "name:    %s\n", displayName(id))
				fmt.Fprintf(out, "id:      %s\n", id.ID)
				fmt.Fprintf(out, "kind:    %s\n", id.Kind)
				fmt.Fprintf(out, "source:  %s\n", id.Source)
				if id.ExpiresAt != nil {
					fmt.Fprintf(out, "expires: %s\n", id.ExpiresAt.UTC().Format(time.RFC3339))
				}
			}
			list := c.ListCode()
			if list == "" {
				list = ui.C(muted, "(none)")
			}
			fmt.Fprintf(out, "list:    %s\n", list)
			if p := c.PendingCode(); p != "" {
				fmt.Fprintf(out, "pending: %s\n", p)
			}
			fmt.Fprintln(out, ui.C(muted, "env override: "+identity.EnvToken))
			return nil
		},
	}

	return []*cobra.Command{login, guest, logout, whoami}
}

func displayName(id *identity.Identity) string {
	if id.Name != "" {
		return id.Name
	}
	return id.ID
}

func activeHint(cmd *cobra.Command, c *app.Client) {
	if code := c.ListCode(); code != "" {
		fmt.Fprintln(cmd.OutOrStdout(), ui.C(ui.Current().Muted, "active list: "+code))
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.C(ui.Current().Muted, "next: shoplist create  or  shoplist join <code>"))
}
