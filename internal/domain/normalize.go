package domain

import "strings"

// identitySeparator cannot appear in product ids, formats or dimensions
// produced by the catalog, so canonical keys never collide.
const identitySeparator = "__"

// NormalizeEntry turns a raw entry into a line item. The product id defaults
// to the storage key. Entries whose quantity is not positive are reported as
// absent.
func NormalizeEntry(key string, e Entry) (LineItem, bool) {
	var item LineItem
	switch v := e.(type) {
	case Quantity:
		item = LineItem{ProductID: key, Quantity: toQuantity(float64(v))}
	case LineItem:
		item = v
	default:
		return LineItem{}, false
	}

	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		item.ProductID = strings.TrimSpace(key)
	}
	if item.ProductID == "" || item.Quantity <= 0 {
		return LineItem{}, false
	}
	return item, true
}

// CanonicalKey returns the identity of a line item: product id, format and
// dimensions. Absent parts are empty strings.
func CanonicalKey(item LineItem, fallbackKey string) string {
	productID := item.ProductID
	if productID == "" {
		productID = fallbackKey
	}
	return strings.Join([]string{productID, deref(item.Format), deref(item.Dimensions)}, identitySeparator)
}

// StorageKey is the key a new line item is stored under.
func StorageKey(item LineItem) string {
	if item.Format == nil && item.Dimensions == nil {
		return item.ProductID
	}
	return item.ProductID + "-" + deref(item.Format) + "-" + deref(item.Dimensions)
}

// SameLine reports whether two line items share a canonical identity.
func SameLine(a, b LineItem) bool {
	return CanonicalKey(a, "") == CanonicalKey(b, "")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
