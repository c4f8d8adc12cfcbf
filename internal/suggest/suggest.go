// Package suggest proposes a category, names and descriptions for a photographed item.
package suggest

import (
	"context"
	"strings"

	"lostfound-rest-api/internal/model"
)

// Suggestion is a set of prefill values the reporter can pick from.
type Suggestion struct {
	Category               model.Category `json:"category"`
	NameSuggestions        []string       `json:"nameSuggestions"`
	DescriptionSuggestions []string       `json:"descriptionSuggestions"`
}

// Provider produces suggestions for an uploaded image. hint is free text typed by the reporter, possibly empty.
type Provider interface {
	Suggest(ctx context.Context, image []byte, contentType, hint string) (*Suggestion, error)
}

type catalogEntry struct {
	keywords     []string
	names        []string
	descriptions []string
}

var catalog = map[model.Category]catalogEntry{
	model.CategoryPhone: {
		keywords:     []string{"phone", "iphone", "android", "samsung", "pixel", "mobile"},
		names:        []string{"Smartphone", "Mobile phone", "Phone with case"},
		descriptions: []string{"Smartphone found with the screen locked.", "Mobile phone in a protective case."},
	},
	model.CategoryWallet: {
		keywords:     []string{"wallet", "purse", "cardholder", "billfold"},
		names:        []string{"Wallet", "Leather wallet", "Card holder"},
		descriptions: []string{"Wallet containing cards.", "Small leather wallet."},
	},
	model.CategoryWatch: {
		keywords:     []string{"watch", "smartwatch", "wristwatch", "fitbit"},
		names:        []string{"Wristwatch", "Smartwatch"},
		descriptions: []string{"Wristwatch with a metal strap.", "Smartwatch with a rubber band."},
	},
	model.CategoryKeys: {
		keywords:     []string{"key", "keys", "keychain", "fob"},
		names:        []string{"Keys", "Key ring", "Car key"},
		descriptions: []string{"Set of keys on a ring.", "Single key with a tag."},
	},
	model.CategoryJewelry: {
		keywords:     []string{"ring", "necklace", "bracelet", "earring", "jewelry", "jewellery"},
		names:        []string{"Ring", "Necklace", "Bracelet"},
		descriptions: []string{"Piece of jewelry.", "Silver necklace with a pendant."},
	},
	model.CategoryElectronics: {
		keywords:     []string{"laptop", "charger", "earbuds", "headphones", "tablet", "calculator", "usb", "airpods"},
		names:        []string{"Laptop", "Charger", "Headphones", "Earbuds case"},
		descriptions: []string{"Electronic device.", "Charging cable with adapter."},
	},
	model.CategoryClothing: {
		keywords:     []string{"jacket", "hoodie", "shirt", "scarf", "hat", "cap", "glove", "sweater", "coat"},
		names:        []string{"Jacket", "Hoodie", "Scarf"},
		descriptions: []string{"Item of clothing.", "Dark jacket left on a chair."},
	},
	model.CategoryBook: {
		keywords:     []string{"book", "notebook", "textbook", "binder", "novel"},
		names:        []string{"Textbook", "Notebook", "Binder"},
		descriptions: []string{"Book with handwritten notes.", "Spiral notebook."},
	},
	model.CategoryID: {
		keywords:     []string{"id", "card", "badge", "license", "licence", "passport"},
		names:        []string{"Student ID card", "ID badge"},
		descriptions: []string{"Identification card.", "Badge on a lanyard."},
	},
	model.CategoryBag: {
		keywords:     []string{"bag", "backpack", "tote", "handbag", "suitcase", "pouch"},
		names:        []string{"Backpack", "Tote bag", "Handbag"},
		descriptions: []string{"Backpack with contents.", "Cloth tote bag."},
	},
	model.CategoryOther: {
		names:        []string{"Found item"},
		descriptions: []string{"Item found on campus."},
	},
}

// CatalogProvider maps the hint to a category by keyword and returns canned suggestions for it.
// It never looks at the image and always returns the same answer for the same hint.
type CatalogProvider struct{}

var _ Provider = CatalogProvider{}

// Suggest implements Provider.
func (CatalogProvider) Suggest(ctx context.Context, image []byte, contentType, hint string) (*Suggestion, error) {
	category := matchCategory(hint)
	entry := catalog[category]
	return &Suggestion{
		Category:               category,
		NameSuggestions:        append([]string(nil), entry.names...),
		DescriptionSuggestions: append([]string(nil), entry.descriptions...),
	}, nil
}

// matchCategory walks categories in declaration order so ties resolve the same way every time.
func matchCategory(hint string) model.Category {
	if c, err := model.ParseCategory(hint); err == nil {
		return c
	}

	words := strings.FieldsFunc(strings.ToLower(hint), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, category := range model.Categories() {
		for _, keyword := range catalog[category].keywords {
			for _, w := range words {
				if w == keyword {
					return category
				}
			}
		}
	}
	return model.CategoryOther
}

// NoopProvider returns an empty suggestion in category Other.
type NoopProvider struct{}

var _ Provider = NoopProvider{}

// Suggest implements Provider.
func (NoopProvider) Suggest(ctx context.Context, image []byte, contentType, hint string) (*Suggestion, error) {
	return &Suggestion{
		Category:               model.CategoryOther,
		NameSuggestions:        []string{},
		DescriptionSuggestions: []string{},
	}, nil
}

// New returns the provider selected by name ("catalog" or "none").
func New(name string) Provider {
	if name == "none" {
		return NoopProvider{}
	}
	return CatalogProvider{}
}
