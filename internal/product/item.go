// Package product models the two purchasable kinds sold by the storefront.
package product

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Kind is the discriminant of a purchasable item.
type Kind string

const (
	KindArticle   Kind = "ARTICLE"
	KindPromotion Kind = "PROMOTION"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindArticle || k == KindPromotion
}

// Item is implemented by Article and Promotion only.
type Item interface {
	Key() Key
	Name() string
	sealed()
}

// Article is a standalone product.
type Article struct {
	ID           int64         `json:"id"`
	Denomination string        `json:"denomination"`
	SalePrice    pricing.Money `json:"salePrice"`
	Category     *Category     `json:"category,omitempty"`
	ImageURL     string        `json:"imageUrl,omitempty"`
}

// Category is the optional article category.
type Category struct {
	ID           int64  `json:"id"`
	Denomination string `json:"denomination"`
}

// Promotion bundles articles at a promotional price within a validity window.
type Promotion struct {
	ID               int64          `json:"id"`
	Denomination     string         `json:"denomination"`
	PromotionalPrice pricing.Money  `json:"promotionalPrice"`
	Articles         []BundledEntry `json:"articles,omitempty"`
	From             time.Time      `json:"validFrom"`
	To               time.Time      `json:"validTo"`
}

// BundledEntry lists a constituent shown with a promotion.
type BundledEntry struct {
	ArticleID    int64  `json:"articleId"`
	Denomination string `json:"denomination"`
	Quantity     int    `json:"quantity"`
}

func (a Article) Key() Key     { return Key{Kind: KindArticle, ID: a.ID} }
func (a Article) Name() string { return a.Denomination }
func (Article) sealed()        {}

func (p Promotion) Key() Key     { return Key{Kind: KindPromotion, ID: p.ID} }
func (p Promotion) Name() string { return p.Denomination }
func (Promotion) sealed()        {}

// ActiveAt reports whether t falls within the promotion window. Both ends are
// inclusive at day granularity; a zero bound is open.
func (p Promotion) ActiveAt(t time.Time) bool {
	day := truncateDay(t)
	if !p.From.IsZero() && day.Before(truncateDay(p.From)) {
		return false
	}
	if !p.To.IsZero() && day.After(truncateDay(p.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Match dispatches on the concrete variant. Adding a kind requires a new
// parameter here, so every call site is revisited by the compiler.
func Match[T any](it Item, article func(Article) T, promotion func(Promotion) T) T {
	switch v := it.(type) {
	case Article:
		return article(v)
	case *Article:
		return article(*v)
	case Promotion:
		return promotion(v)
	case *Promotion:
		return promotion(*v)
	default:
		panic(fmt.Sprintf("product: unknown item %T", it))
	}
}

// UnitPrice returns the authoritative price for the variant.
func UnitPrice(it Item) pricing.Money {
	return Match(it,
		func(a Article) pricing.Money { return a.SalePrice },
		func(p Promotion) pricing.Money { return p.PromotionalPrice },
	)
}

// Key identifies a purchasable item across kinds.
type Key struct {
	Kind Kind
	ID   int64
}

// String renders the key as "article:12" or "promotion:3".
func (k Key) String() string {
	return strings.ToLower(string(k.Kind)) + ":" + strconv.FormatInt(k.ID, 10)
}

// ParseKey parses the String form.
func ParseKey(s string) (Key, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Key{}, fmt.Errorf("invalid item key %q", s)
	}
	k := Key{Kind: Kind(strings.ToUpper(kind))}
	if !k.Kind.Valid() {
		return Key{}, fmt.Errorf("invalid item kind %q", kind)
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return Key{}, fmt.Errorf("invalid item id %q", id)
	}
	k.ID = n
	return k, nil
}

// MarshalText implements encoding.TextMarshaler.
func (k Key) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := ParseKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
