package domain

import "sort"

// RowThreshold is the largest y-distance from a row's top element at which
// another element still sits on that row.
const RowThreshold = 20.0

// ReadingOrder returns the elements sorted top-to-bottom, left-to-right.
// Elements are taken by y and grouped into rows: a row starts at its
// topmost element and takes every following element no more than
// RowThreshold below it. Each row is ordered by x. The input slice is not
// modified.
func ReadingOrder(elements []Element) []Element {
	out := make([]Element, len(elements))
	copy(out, elements)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})

	for start := 0; start < len(out); {
		end := start + 1
		for end < len(out) && out[end].Y-out[start].Y <= RowThreshold {
			end++
		}
		row := out[start:end]
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		start = end
	}
	return out
}
