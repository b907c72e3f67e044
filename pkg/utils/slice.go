package utils

import (
	"sort"
)

// Map applies mapper to each element of sli and returns the results,
// index for index.
func Map[T any, R any](sli []T, mapper func(v T) R) []R {
	ret := make([]R, len(sli))
	for nth, v := range sli {
		ret[nth] = mapper(v)
	}
	return ret
}

// ToMap indexes sli by getkey. On key collision the later element wins.
func ToMap[T any, K comparable](sli []T, getkey func(v T) K) map[K]T {
	m := make(map[K]T, len(sli))
	for _, v := range sli {
		m[getkey(v)] = v
	}
	return m
}

// Filter keeps the elements for which pred holds, in order.
func Filter[T any](sli []T, pred func(T) bool) []T {
	ret := make([]T, 0, len(sli))
	for _, v := range sli {
		if pred(v) {
			ret = append(ret, v)
		}
	}
	return ret
}

// Sorted returns a sorted copy of sli. The sort is not stable.
func Sorted[T any](sli []T, less func(a, b T) bool) []T {
	sorted := make([]T, len(sli))
	copy(sorted, sli)
	sort.Slice(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	return sorted
}
