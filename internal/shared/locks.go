package shared

import (
	"fmt"
	"sort"
)

// StockLockKey builds the lock key guarding one (item, warehouse) aggregate.
func StockLockKey(itemID, warehouseID int64) string {
	return fmt.Sprintf("inventory:stock:%d:%d:lock", itemID, warehouseID)
}

// SortLockKeys returns the distinct keys in acquisition order.
func SortLockKeys(keys ...string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
