package cmp_test

import (
	"testing"

	"github.com/fieldline/imagingdb/pkg/cmp"
)

func TestSliceEq(t *testing.T) {
	for name, testcase := range map[string]struct {
		a, b []int
		want bool
	}{
		"equal slices":      {[]int{1, 2, 3}, []int{1, 2, 3}, true},
		"different order":   {[]int{1, 2, 3}, []int{3, 2, 1}, false},
		"different length":  {[]int{1, 2, 3}, []int{1, 2}, false},
		"both empty":        {[]int{}, []int{}, true},
		"empty against nil": {[]int{}, nil, true},
	} {
		t.Run(name, func(t *testing.T) {
			if got := cmp.SliceEq(testcase.a, testcase.b); got != testcase.want {
				t.Errorf("SliceEq(%v, %v) = %v, want %v", testcase.a, testcase.b, got, testcase.want)
			}
		})
	}
}

func TestSliceContentEq(t *testing.T) {
	for name, testcase := range map[string]struct {
		a, b []string
		want bool
	}{
		"same content, different order": {[]string{"a", "b", "c"}, []string{"c", "b", "a"}, true},
		"extra element":                 {[]string{"a", "b", "c"}, []string{"c", "b", "a", "z"}, false},
		"multiplicity matters":          {[]string{"a", "b", "c", "c"}, []string{"a", "b", "c"}, false},
		"equal bags with duplicates":    {[]string{"a", "c", "c"}, []string{"c", "a", "c"}, true},
	} {
		t.Run(name, func(t *testing.T) {
			if got := cmp.SliceContentEq(testcase.a, testcase.b); got != testcase.want {
				t.Errorf("SliceContentEq(%v, %v) = %v, want %v", testcase.a, testcase.b, got, testcase.want)
			}
		})
	}
}

func TestSliceSubsetWith(t *testing.T) {
	pred := func(a, b int) bool { return a == b }

	if !cmp.SliceSubsetWith([]int{1, 2, 3, 4, 5}, []int{4, 3}, pred) {
		t.Error("{1..5} should contain {4, 3}")
	}
	if cmp.SliceSubsetWith([]int{1, 2, 3, 4, 5}, []int{3, 3, 4}, pred) {
		t.Error("{1..5} has only one 3; {3, 3, 4} should not be subset")
	}
	if !cmp.SliceSubsetWith([]int{1, 2, 3}, []int{}, pred) {
		t.Error("empty set is subset of everything")
	}
}
