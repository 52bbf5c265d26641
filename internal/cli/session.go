package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/shoplist/internal/session"
	"github.com/idilsaglam/shoplist/internal/ui"
)

func sessionCommands(e *env) []*cobra.Command {
	var yes bool

	share := &cobra.Command{
		Use:   "share",
		Short: "Print the share link and copy it to the clipboard",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			url, err := c.ShareURL()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			if err := e.opt.Clipboard(url); err != nil {
				e.opt.Log.Debug("clipboard unavailable")
				return nil
			}
			ui.OK(cmd.OutOrStdout(), "link copied")
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Start a new list with a fresh code",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			code, err := c.Create()
			if err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), "created list "+code)
			if url, err := c.ShareURL(); err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), ui.C(ui.Current().Muted, "share: "+url))
			}
			return nil
		},
	}

	join := &cobra.Command{
		Use:   "join <code>",
		Short: "Make the list with this code active",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			code, err := c.Join(args[0])
			if err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), "joined list "+code)
			return nil
		},
	}

	open := &cobra.Command{
		Use:   "open <url>",
		Short: "Open a share link",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			code, err := c.Open(args[0])
			if err != nil {
				return &usageError{msg: err.Error()}
			}
			if c.Identity() == nil {
				ui.OK(cmd.OutOrStdout(), "list "+code+" opens once you sign in")
				return nil
			}
			ui.OK(cmd.OutOrStdout(), "list "+code+" is active")
			return nil
		},
	}

	leave := &cobra.Command{
		Use:   "leave",
		Short: "Stop using the active list on this device",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.connect(cmd.Context())
			if err != nil {
				return err
			}
			code := c.ListCode()
			if code == "" {
				return &usageError{msg: "no active list"}
			}
			err = c.Leave(func() bool {
				return yes || confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Leave list "+code+"?")
			})
			if errors.Is(err, session.ErrLeaveDeclined) {
				fmt.Fprintln(cmd.OutOrStdout(), ui.C(ui.Current().Muted, "still on list "+code))
				return nil
			}
			if err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), "left list "+code)
			return nil
		},
	}
	leave.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return []*cobra.Command{share, create, join, open, leave}
}

// confirm asks a yes/no question; anything but y/yes is a no.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprint(out, question+" [y/N] ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
