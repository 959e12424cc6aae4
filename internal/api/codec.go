package api

import (
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/productos/internal/domain/product"
)

// maxMessageLen caps error messages taken from raw response bodies.
const maxMessageLen = 512

func encodeCredentials(c Credentials) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("username", func(e *jx.Encoder) { e.Str(c.Username) })
		e.Field("password", func(e *jx.Encoder) { e.Str(c.Password) })
	})
	return e.Bytes()
}

// encodeProduct writes the full record. Price is written as a JSON number
// using the exact decimal representation.
func encodeProduct(p product.Product) []byte {
	var e jx.Encoder
	writeProduct(&e, p)
	return e.Bytes()
}

func writeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Raw([]byte(p.Price.String())) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
	})
}

// DecodeProduct reads a product object. Keys are matched case-insensitively;
// unknown keys are skipped.
func DecodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch strings.ToLower(string(key)) {
		case "id":
			p.ID, err = d.Int64()
		case "name":
			p.Name, err = decodeString(d)
		case "price":
			p.Price, err = DecodeDecimal(d)
		case "category":
			p.Category, err = decodeString(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "decode %q", key)
		}
		return nil
	})
	if err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// DecodeProducts reads an array of product objects.
func DecodeProducts(d *jx.Decoder) ([]product.Product, error) {
	products := make([]product.Product, 0)
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := DecodeProduct(d)
		if err != nil {
			return err
		}
		products = append(products, p)
		return nil
	}); err != nil {
		return nil, err
	}
	return products, nil
}

// EncodeProducts writes products as a JSON array.
func EncodeProducts(products []product.Product) []byte {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, p := range products {
			writeProduct(e, p)
		}
	})
	return e.Bytes()
}

// EncodeProduct writes a single product object.
func EncodeProduct(p product.Product) []byte {
	return encodeProduct(p)
}

// DecodeDecimal accepts a JSON number or a numeric string.
func DecodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(string(n))
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Null:
		return decimal.Zero, d.Null()
	default:
		return decimal.Zero, errors.Errorf("unexpected %s for decimal", d.Next())
	}
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeToken(body []byte) (string, error) {
	var token string
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if strings.EqualFold(string(key), "token") {
			var err error
			token, err = decodeString(d)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		return "", errors.Wrap(err, "decode login response")
	}
	if token == "" {
		return "", errors.New("login response has no token")
	}
	return token, nil
}

// errorMessage extracts a human-readable message from an error body. It tries
// the "message" field, then "title" (problem details), then the raw text.
func errorMessage(body []byte, fallback string) string {
	var message, title string
	d := jx.DecodeBytes(body)
	if d.Next() == jx.Object {
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch {
			case strings.EqualFold(string(key), "message") && d.Next() == jx.String:
				s, err := d.Str()
				message = s
				return err
			case strings.EqualFold(string(key), "title") && d.Next() == jx.String:
				s, err := d.Str()
				title = s
				return err
			default:
				return d.Skip()
			}
		})
		if err == nil {
			switch {
			case message != "":
				return message
			case title != "":
				return title
			default:
				return fallback
			}
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" || !utf8.ValidString(text) {
		return fallback
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen]
	}
	return text
}
