package domain

import (
	"sort"
	"strconv"
)

type mergeSlot struct {
	storageKey string
	item       LineItem
}

// MergeCartItems reconciles a user cart with a guest cart. User entries are
// visited first, so on a canonical collision quantities are summed and the
// user's fields win; fields the user entry lacks are backfilled from the guest
// entry. Calling it twice with the same guest items counts them twice.
func MergeCartItems(userItems, guestItems map[string]Entry) Items {
	slots := make(map[string]*mergeSlot)
	var order []string

	for _, src := range []map[string]Entry{userItems, guestItems} {
		for _, key := range sortedKeys(src) {
			item, ok := NormalizeEntry(key, src[key])
			if !ok {
				continue
			}
			id := CanonicalKey(item, key)
			slot, seen := slots[id]
			if !seen {
				slots[id] = &mergeSlot{storageKey: key, item: item}
				order = append(order, id)
				continue
			}
			slot.item = overlay(slot.item, item)
		}
	}

	out := make(Items, len(order))
	for _, id := range order {
		slot := slots[id]
		if slot.item.Quantity <= 0 {
			continue
		}
		out[freeKey(out, slot.storageKey, StorageKey(slot.item), id)] = slot.item
	}
	return out
}

// freeKey returns the first candidate not yet used in out. When every
// candidate is taken the last one gets a numeric suffix.
func freeKey(out Items, candidates ...string) string {
	for _, key := range candidates {
		if _, taken := out[key]; !taken {
			return key
		}
	}
	base := candidates[len(candidates)-1]
	for n := 2; ; n++ {
		key := base + "-" + strconv.Itoa(n)
		if _, taken := out[key]; !taken {
			return key
		}
	}
}

// overlay merges a later record into an earlier one for the same line.
func overlay(earlier, later LineItem) LineItem {
	merged := earlier
	merged.Quantity = earlier.Quantity + later.Quantity
	if merged.Quantity > maxQuantity || merged.Quantity < 0 {
		merged.Quantity = maxQuantity
	}
	merged.Format = firstSet(earlier.Format, later.Format)
	merged.Dimensions = firstSet(earlier.Dimensions, later.Dimensions)
	merged.Title = firstSet(earlier.Title, later.Title)
	merged.ImageURL = firstSet(earlier.ImageURL, later.ImageURL)
	merged.Slug = firstSet(earlier.Slug, later.Slug)
	if merged.Price == nil {
		merged.Price = later.Price
	}
	return merged
}

func firstSet(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}

func sortedKeys(m map[string]Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
