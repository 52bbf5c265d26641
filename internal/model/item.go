package model

import (
	"slices"
	"strings"
	"time"
)

// Item is one entry of a shared shopping list.
// ID and CreatedAt are assigned by the store.
type Item struct {
	ID        string    `json:"id" bson:"-"`
	Name      string    `json:"name" bson:"name" validate:"required"`
	Category  Category  `json:"category" bson:"category" validate:"category"`
	Completed bool      `json:"completed" bson:"completed"`
	Quantity  int       `json:"quantity" bson:"quantity" validate:"min=1"`
	ListCode  string    `json:"list_code" bson:"list_code" validate:"required"`
	OwnerID   string    `json:"owner_id" bson:"owner_id" validate:"required"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Completed *bool
	Quantity  *int
}

// Category is one of a fixed set of aisles.
type Category string

const (
	General    Category = "General"
	Vegetables Category = "Vegetables"
	Fruit      Category = "Fruit"
	Dairy      Category = "Dairy"
	Meat       Category = "Meat"
	Frozen     Category = "Frozen"
	Bakery     Category = "Bakery"
	Cleaning   Category = "Cleaning"
	Drinks     Category = "Drinks"
)

// Categories lists every category in picker order.
var Categories = []Category{General, Vegetables, Fruit, Dairy, Meat, Frozen, Bakery, Cleaning, Drinks}

var icons = map[Category]string{
	General:    "🛒",
	Vegetables: "🥦",
	Fruit:      "🍎",
	Dairy:      "🥛",
	Meat:       "🥩",
	Frozen:     "❄️",
	Bakery:     "🍞",
	Cleaning:   "🧼",
	Drinks:     "🥤",
}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	_, ok := icons[c]
	return ok
}

func (c Category) Icon() string { return icons[c] }

// ParseCategory matches s case-insensitively. Empty or unknown input yields General.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c
		}
	}
	return General
}

// Next cycles through Categories; used by the picker.
func (c Category) Next() Category {
	i := slices.Index(Categories, c)
	return Categories[(i+1)%len(Categories)]
}

// SortForDisplay returns a copy of items with completed entries moved after
// pending ones. The relative order inside each group is kept, so the
// store's category/name order survives.
func SortForDisplay(items []Item) []Item {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b Item) int {
		switch {
		case a.Completed == b.Completed:
			return 0
		case a.Completed:
			return 1
		default:
			return -1
		}
	})
	return out
}

// Stats counts completed and total items; used for the header.
func Stats(items []Item) (done, total int) {
	for _, it := range items {
		if it.Completed {
			done++
		}
	}
	return done, len(items)
}

// Completed filters the completed items.
func Completed(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if it.Completed {
			out = append(out, it)
		}
	}
	return out
}
