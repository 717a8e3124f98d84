// Package report orders resolved events and notices into the final
// chronological report and renders its plain-text body.
package report

import (
	"sort"
	"strings"

	"github.com/spiffcs/reponews/internal/model"
)

// Order sorts items by timestamp ascending. The sort is stable so that
// items with equal timestamps keep the order they were produced in, which
// is per-repository fetch order.
func Order(items []model.ReportItem) []model.ReportItem {
	out := make([]model.ReportItem, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp().Before(out[j].Timestamp())
	})
	return out
}

// Body renders the ordered items as the report body, one rendered item per
// paragraph.
func Body(items []model.ReportItem) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = it.Render()
	}
	return strings.Join(parts, "\n\n")
}
