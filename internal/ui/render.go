package ui

import (
	"fmt"
	"strings"

	"github.com/idilsaglam/shoplist/internal/model"
)

const (
	barWidth     = 28
	maxNameWidth = 60
)

// Header is the list title line: code plus completed/pending/total counts.
func Header(code string, items []model.Item) string {
	t := Current()
	done, total := model.Stats(items)
	return fmt.Sprintf("%s %s  %s %d  %s %d  %s %d",
		C(t.Title, "List"), C(t.Accent, code),
		C(t.Success, symCheck), done,
		C(t.Pending, "•"), total-done,
		C(t.Muted, "Total"), total,
	)
}

// ItemLine renders one item with its 1-based display index.
func ItemLine(index int, it model.Item) string {
	t := Current()
	box, color := t.BoxUnchecked, t.Muted
	if it.Completed {
		box, color = t.BoxChecked, t.Success
	}
	name := it.Name
	if r := []rune(name); len(r) > maxNameWidth {
		name = string(r[:maxNameWidth-3]) + "..."
	}
	if t.Icons && it.Category.Icon() != "" {
		name = it.Category.Icon() + " " + name
	}
	if it.Quantity > 1 {
		name += C(t.Accent, fmt.Sprintf(" ×%d", it.Quantity))
	}
	if it.Completed {
		name = C(dim, name)
	}
	return fmt.Sprintf("%s %s %s", C(dim, fmt.Sprintf("%2d.", index)), C(color, box), name)
}

// ItemLines renders items in display order (pending first). Indexes match
// what DisplayIndex resolves.
func ItemLines(items []model.Item) []string {
	sorted := model.SortForDisplay(items)
	if len(sorted) == 0 {
		return []string{C(Current().Muted, "no items")}
	}
	out := make([]string, 0, len(sorted))
	for i, it := range sorted {
		out = append(out, ItemLine(i+1, it))
	}
	return out
}

// GroupedLines renders pending and done items under their own headings.
// Numbering continues across groups so indexes stay stable.
func GroupedLines(items []model.Item) []string {
	t := Current()
	sorted := model.SortForDisplay(items)
	pending := len(sorted) - len(model.Completed(sorted))

	section := func(title string, from, to int) []string {
		lines := []string{C(t.Accent, title)}
		if from == to {
			return append(lines, C(t.Muted, "(none)"))
		}
		for i := from; i < to; i++ {
			lines = append(lines, ItemLine(i+1, sorted[i]))
		}
		return lines
	}
	lines := section("To buy", 0, pending)
	lines = append(lines, "")
	return append(lines, section("In the cart", pending, len(sorted))...)
}

// DisplayIndex resolves a 1-based index from ItemLines back to its item.
func DisplayIndex(items []model.Item, index int) (model.Item, error) {
	sorted := model.SortForDisplay(items)
	if index < 1 || index > len(sorted) {
		return model.Item{}, fmt.Errorf("index out of range: have %d, got %d", len(sorted), index)
	}
	return sorted[index-1], nil
}

// ListLines is the full panel body used by `ls`.
func ListLines(code string, items []model.Item, group bool) []string {
	done, total := model.Stats(items)
	lines := []string{
		Header(code, items),
		C(Current().Muted, ProgressBar(done, total, barWidth)),
		"",
	}
	if group {
		lines = append(lines, GroupedLines(items)...)
	} else {
		lines = append(lines, ItemLines(items)...)
	}
	return append(lines, "", C(Current().Muted, "Tip: add with `shoplist add Milk --category dairy`"))
}

// CategoryList is the comma separated category names, for help texts.
func CategoryList() string {
	names := make([]string, len(model.Categories))
	for i, c := range model.Categories {
		names[i] = strings.ToLower(string(c))
	}
	return strings.Join(names, ", ")
}
