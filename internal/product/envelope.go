package product

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when decoding an item with a missing or unknown type tag.
var ErrUnknownKind = errors.New("product: unknown item type")

// Envelope carries an Item through JSON with its discriminant in the "type" field.
type Envelope struct {
	Item Item
}

type taggedArticle struct {
	Type Kind `json:"type"`
	Article
}

type taggedPromotion struct {
	Type Kind `json:"type"`
	Promotion
}

// MarshalJSON implements json.Marshaler.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Item == nil {
		return []byte("null"), nil
	}
	tagged := Match(e.Item,
		func(a Article) any { return taggedArticle{Type: KindArticle, Article: a} },
		func(p Promotion) any { return taggedPromotion{Type: KindPromotion, Promotion: p} },
	)
	return json.Marshal(tagged)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	switch head.Type {
	case KindArticle:
		var a Article
		if err := json.Unmarshal(b, &a); err != nil {
			return err
		}
		e.Item = a
	case KindPromotion:
		var p Promotion
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		e.Item = p
	default:
		return fmt.Errorf("%w %q", ErrUnknownKind, head.Type)
	}
	return nil
}
