package repositories

import (
	"fmt"
	"strings"

	"catalog/internal/models"
)

// Query carries pagination, ordering and an equality filter for Find and Count.
// A Limit below one means no limit and an Offset below one means no offset.
type Query struct {
	Limit  int
	Offset int
	// Sort lists field names, each optionally prefixed with "-" for descending order.
	Sort   []string
	Filter map[string]any
}

// WithoutPagination returns a copy of q with Limit and Offset cleared.
func (q Query) WithoutPagination() Query {
	q.Limit = 0
	q.Offset = 0
	return q
}

type sortKey struct {
	field string
	desc  bool
}

func parseSort(sort []string) ([]sortKey, error) {
	keys := make([]sortKey, 0, len(sort))
	for _, s := range sort {
		k := sortKey{field: s}
		if strings.HasPrefix(s, "-") {
			k.field = strings.TrimPrefix(s, "-")
			k.desc = true
		}
		if _, ok := models.ProductColumns[k.field]; !ok {
			return nil, fmt.Errorf("unknown sort field %q", k.field)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// filterColumns translates filter field names to column names.
func filterColumns(filter map[string]any) (map[string]any, error) {
	cols := make(map[string]any, len(filter))
	for field, val := range filter {
		col, ok := models.ProductColumns[field]
		if !ok {
			return nil, fmt.Errorf("unknown filter field %q", field)
		}
		cols[col] = val
	}
	return cols, nil
}
