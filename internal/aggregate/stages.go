package aggregate

import "sort"

// The pipelines are built from small composable stages over in-memory
// slices, giving static checking of field access instead of a string-keyed
// pipeline DSL. Every stage returns a fresh slice; inputs are never mutated.

// Filter keeps the elements for which keep returns true, preserving order.
func Filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// SortBy returns the elements stable-sorted by less; equal elements keep
// their original relative order.
func SortBy[T any](items []T, less func(a, b T) bool) []T {
	out := make([]T, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Head truncates to the first n elements.
func Head[T any](items []T, n int) []T {
	if n < 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

// GroupBy partitions the elements by key, preserving encounter order within
// each group.
func GroupBy[T any, K comparable](items []T, key func(T) K) map[K][]T {
	groups := make(map[K][]T)
	for _, item := range items {
		k := key(item)
		groups[k] = append(groups[k], item)
	}
	return groups
}

// Project maps every element through fn.
func Project[T, U any](items []T, fn func(T) U) []U {
	out := make([]U, len(items))
	for i, item := range items {
		out[i] = fn(item)
	}
	return out
}
