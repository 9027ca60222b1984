// Package model defines the Canvas API resources the client decodes.
package model

import (
	"sort"
	"strings"
	"time"
)

// Comparable is implemented by resources that can be listed in a stable order.
type Comparable interface {
	// ComparisonDate is the primary sort key. Zero sorts last.
	ComparisonDate() time.Time
	// ComparisonString breaks ties, case-insensitively.
	ComparisonString() string
}

// SortByComparison orders items by date (newest first), then by string.
func SortByComparison[T Comparable](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		di, dj := items[i].ComparisonDate(), items[j].ComparisonDate()
		switch {
		case di.IsZero() != dj.IsZero():
			return dj.IsZero()
		case !di.Equal(dj):
			return di.After(dj)
		}
		return strings.ToLower(items[i].ComparisonString()) < strings.ToLower(items[j].ComparisonString())
	})
}
