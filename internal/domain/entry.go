package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Entry is a raw cart value as persisted by a client or an older document:
// either a bare Quantity (legacy) or a LineItem.
type Entry interface {
	isEntry()
}

// Quantity is a legacy entry where the storage key is the product id.
type Quantity float64

func (Quantity) isEntry() {}

// LineItem is one purchasable line in a cart.
type LineItem struct {
	ProductID  string   `json:"productId"`
	Quantity   int      `json:"quantity"`
	Format     *string  `json:"format,omitempty"`
	Dimensions *string  `json:"dimensions,omitempty"`
	Title      *string  `json:"title,omitempty"`
	ImageURL   *string  `json:"imageUrl,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Slug       *string  `json:"slug,omitempty"`
}

func (LineItem) isEntry() {}

// Items maps storage key to a normalized line item.
type Items map[string]LineItem

// Entries exposes normalized items as raw entries for reconciliation.
func (it Items) Entries() map[string]Entry {
	out := make(map[string]Entry, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

// ParseEntry converts a decoded JSON or BSON value into an Entry.
// Shapes that are neither numeric nor an object are rejected.
func ParseEntry(v any) (Entry, bool) {
	switch val := v.(type) {
	case Quantity:
		return val, true
	case LineItem:
		return val, true
	case *LineItem:
		if val == nil {
			return nil, false
		}
		return *val, true
	case map[string]any:
		return parseObject(val), true
	}
	if n, ok := number(v); ok {
		return Quantity(n), true
	}
	return nil, false
}

// ParseEntries parses a raw JSON cart mapping. Values that do not parse are
// dropped.
func ParseEntries(raw map[string]json.RawMessage) map[string]Entry {
	out := make(map[string]Entry, len(raw))
	for key, msg := range raw {
		v, ok := decodeLoose(msg)
		if !ok {
			continue
		}
		if e, ok := ParseEntry(v); ok {
			out[key] = e
		}
	}
	return out
}

// ParseLineItem parses the fields of one raw JSON line item object with the
// same coercion ParseEntries applies. Fields that do not decode are ignored.
func ParseLineItem(raw map[string]json.RawMessage) LineItem {
	fields := make(map[string]any, len(raw))
	for key, msg := range raw {
		if v, ok := decodeLoose(msg); ok {
			fields[key] = v
		}
	}
	return parseObject(fields)
}

func decodeLoose(msg json.RawMessage) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(string(msg)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

func parseObject(m map[string]any) LineItem {
	var item LineItem
	switch id := m["productId"].(type) {
	case string:
		item.ProductID = strings.TrimSpace(id)
	default:
		if n, ok := number(id); ok && !math.IsNaN(n) && !math.IsInf(n, 0) {
			item.ProductID = strconv.FormatFloat(n, 'f', -1, 64)
		}
	}

	item.Quantity = toQuantity(coerce(m["quantity"]))

	item.Format = optString(m["format"])
	item.Dimensions = optString(m["dimensions"])
	item.Title = optString(m["title"])
	item.ImageURL = optString(m["imageUrl"])
	item.Slug = optString(m["slug"])
	if p, ok := number(m["price"]); ok && !math.IsNaN(p) && !math.IsInf(p, 0) {
		item.Price = &p
	} else if s, ok := m["price"].(string); ok {
		if p, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsInf(p, 0) {
			item.Price = &p
		}
	}
	return item
}

// maxQuantity caps coerced values so conversion to int cannot overflow.
const maxQuantity = math.MaxInt32

// toQuantity truncates a coerced number to a whole quantity. NaN and
// infinities become 0.
func toQuantity(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f > maxQuantity {
		return maxQuantity
	}
	return int(f)
}

// coerce mirrors loose numeric conversion: numbers pass, numeric strings
// parse, everything else becomes NaN.
func coerce(v any) float64 {
	if n, ok := number(v); ok {
		return n
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case Quantity:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return math.NaN(), true
		}
		return f, true
	}
	return 0, false
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
