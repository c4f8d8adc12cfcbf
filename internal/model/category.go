package model

import (
	"fmt"
	"strings"
)

// Category classifies an item.
type Category string

const (
	CategoryPhone       Category = "Phone"
	CategoryWallet      Category = "Wallet"
	CategoryWatch       Category = "Watch"
	CategoryKeys        Category = "Keys"
	CategoryJewelry     Category = "Jewelry"
	CategoryElectronics Category = "Electronics"
	CategoryClothing    Category = "Clothing"
	CategoryBook        Category = "Book"
	CategoryID          Category = "ID"
	CategoryBag         Category = "Bag"
	CategoryOther       Category = "Other"
)

var categories = []Category{
	CategoryPhone,
	CategoryWallet,
	CategoryWatch,
	CategoryKeys,
	CategoryJewelry,
	CategoryElectronics,
	CategoryClothing,
	CategoryBook,
	CategoryID,
	CategoryBag,
	CategoryOther,
}

// Categories returns every known category in display order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory matches s case-insensitively against the known categories.
// An empty string yields CategoryOther.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryOther, nil
	}
	for _, known := range categories {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}
