package shared

import (
	"sort"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

var (
	collatorOnce sync.Once
	collator     *collate.Collator
)

// SortByName orders names with Turkish collation so that listings match what
// users expect (ç/ğ/ı/ö/ş/ü sort next to their base letters, not after z).
func SortByName[T any](items []T, name func(T) string) {
	collatorOnce.Do(func() {
		collator = collate.New(language.Turkish, collate.IgnoreCase)
	})
	sort.SliceStable(items, func(i, j int) bool {
		return collator.CompareString(name(items[i]), name(items[j])) < 0
	})
}
