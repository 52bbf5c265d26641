package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/idilsaglam/shoplist/internal/app"
	"github.com/idilsaglam/shoplist/internal/model"
	"github.com/idilsaglam/shoplist/internal/syncer"
	"github.com/idilsaglam/shoplist/internal/ui"
)

// listed connects and waits for the active list's first snapshot.
func (e *env) listed(ctx context.Context) (*app.Client, syncer.View, error) {
	c, err := e.connect(ctx)
	if err != nil {
		return nil, syncer.View{}, err
	}
	if c.Identity() == nil {
		return nil, syncer.View{}, &usageError{msg: "not signed in", hint: "run `shoplist login` or `shoplist guest`"}
	}
	if c.ListCode() == "" {
		return nil, syncer.View{}, &usageError{msg: "no active list", hint: "run `shoplist create` or `shoplist join <code>`"}
	}
	v, err := c.Snapshot(ctx)
	if err != nil {
		return nil, v, err
	}
	return c, v, nil
}

func pick(name, arg string, items []model.Item) (model.Item, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return model.Item{}, usagef("%s: not a number: %s", name, arg)
	}
	it, err := ui.DisplayIndex(items, n)
	if err != nil {
		return model.Item{}, &usageError{msg: err.Error(), hint: "run `shoplist ls` to see valid indexes"}
	}
	return it, nil
}

func listCommands(e *env) []*cobra.Command {
	var (
		group    bool
		category string
	)

	ls := &cobra.Command{
		Use:   "ls",
		Short: "Show the active list",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, v, err := e.listed(cmd.Context())
			if err != nil {
				return err
			}
			ui.Panel(cmd.OutOrStdout(), ui.ListLines(v.Code, v.Items, group))
			return nil
		},
	}
	ls.Flags().BoolVar(&group, "group", false, "group output by to buy / in the cart")

	add := &cobra.Command{
		Use:   "add <name...>",
		Short: "Add an item (the name can be several words)",
		Args:  minArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := model.ParseCategory(category)
			if strings.TrimSpace(category) != "" && !strings.EqualFold(string(cat), strings.TrimSpace(category)) {
				return usagef("unknown category %q (one of: %s)", category, ui.CategoryList())
			}
			c, _, err := e.listed(cmd.Context())
			if err != nil {
				return err
			}
			name := strings.Join(args, " ")
			if _, err := c.Add(cmd.Context(), name, cat); err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), fmt.Sprintf("added %s %s", cat.Icon(), strings.TrimSpace(name)))
			return nil
		},
	}
	add.Flags().StringVarP(&category, "category", "c", "", "category: "+ui.CategoryList())

	toggle := &cobra.Command{
		Use:     "toggle <index>",
		Aliases: []string{"done"},
		Short:   "Toggle the item at a 1-based index from `ls`",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, v, err := e.listed(cmd.Context())
			if err != nil {
				return err
			}
			it, err := pick("toggle", args[0], v.Items)
			if err != nil {
				return err
			}
			if err := c.ToggleComplete(cmd.Context(), it); err != nil {
				return err
			}
			state := "in the cart"
			if it.Completed {
				state = "back on the list"
			}
			ui.OK(cmd.OutOrStdout(), it.Name+" "+state)
			return nil
		},
	}

	qty := &cobra.Command{
		Use:   "qty <index> <quantity>",
		Short: "Set the quantity of an item",
		Args:  exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := strconv.Atoi(args[1])
			if err != nil {
				return usagef("qty: not a number: %s", args[1])
			}
			c, v, err := e.listed(cmd.Context())
			if err != nil {
				return err
			}
			it, err := pick("qty", args[0], v.Items)
			if err != nil {
				return err
			}
			if err := c.UpdateQuantity(cmd.Context(), it.ID, q); err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), fmt.Sprintf("%s ×%d", it.Name, q))
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the item at a 1-based index from `ls`",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, v, err := e.listed(cmd.Context())
			if err != nil {
				return err
			}
			it, err := pick("rm", args[0], v.Items)
			if err != nil {
				return err
			}
			if err := c.Delete(cmd.Context(), it.ID); err != nil {
				return err
			}
			ui.OK(cmd.OutOrStdout(), "removed "+it.Name)
			return nil
		},
	}

	clearDone := &cobra.Command{
		Use:   "clear",
		Short: "Remove every completed item",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := e.listed(cmd.Context())
			if err != nil {
				return err
			}
			n, err := c.ClearCompleted(cmd.Context())
			if n > 0 {
				ui.OK(cmd.OutOrStdout(), fmt.Sprintf("cleared %d completed", n))
			}
			if err != nil {
				return fmt.Errorf("clear: %w", err)
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.C(ui.Current().Muted, "nothing to clear"))
			}
			return nil
		},
	}

	return []*cobra.Command{ls, add, toggle, qty, rm, clearDone}
}
