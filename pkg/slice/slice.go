// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package slice adds the Map and Filter helpers missing from [slices].
package slice

// Map returns transform applied to every element. A nil input stays nil.
func Map[T, U any](input []T, transform func(T) U) []U {
	if input == nil {
		return nil
	}

	out := make([]U, 0, len(input))
	for _, v := range input {
		out = append(out, transform(v))
	}
	return out
}

// Filter returns the elements for which keep reports true, in order.
func Filter[T any](input []T, keep func(T) bool) []T {
	var out []T
	for _, v := range input {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
