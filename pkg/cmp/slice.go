package cmp

type BiPredicator[V any, U any] func(a V, b U) bool

func SliceEq[T comparable](a []T, b []T) bool {
	if len(a) != len(b) {
		return false
	}
	for nth, va := range a {
		if va != b[nth] {
			return false
		}
	}
	return true
}

func SliceEqWith[T any, U any](a []T, b []U, pred func(a T, b U) bool) bool {
	if len(a) != len(b) {
		return false
	}

	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}

	return true
}

// Check A ⊇ B in some equivarency.
//
// In other words, when we can select an equivarent element in A for each elements in B,
// it returns true. Ordering does not matter, multiplicity does:
// each element of A can be used at most once.
func SliceSubsetWith[A, B any](a []A, b []B, pred func(A, B) bool) bool {
	if len(b) == 0 {
		return true
	}

	if len(a) < len(b) {
		return false
	}

	rest := make([]*A, len(a))
	for i := range a {
		rest[i] = &a[i]
	}

NEXT_B:
	for _, be := range b {
		for i, ae := range rest {
			if !pred(*ae, be) {
				continue
			}
			// drop i-th element, since it is used.
			rest = append(rest[:i], rest[i+1:]...)
			continue NEXT_B
		}
		return false
	}

	return true
}

// check 2 slices has same content but its ordering.
//
// In other words, this function answers equality of two bags (or multi-sets).
//
// example:
//
//	SliceContentEq([]string{"a", "b", "c"}, []string{"c", "b", "a"})       // ==> true
//	SliceContentEq([]string{"a", "b", "c"}, []string{"c", "b", "a", "z"})  // ==> false
//	SliceContentEq([]string{"a", "b", "c", "c"}, []string{"a", "b", "c"})  // ==> false. left has 2 "c"s but right has only 1.
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, EqEq[T])
}

// check 2 slice has equivarent content but its ordering.
//
// In other words, this function answers equivalence of two bags (or multi-sets).
//
// args:
//   - a []S, b []T: slices to be compaired
//   - equiv: predicator says that two instance of T are equiverent or not.
//
// return:
//
//	true when slices `a` and `b` are equiverent (as bag).
//	otherwise, false.
func SliceContentEqWith[S, T any](a []S, b []T, equiv BiPredicator[S, T]) bool {
	if len(a) != len(b) {
		return false
	}
	return SliceSubsetWith(a, b, func(ae S, be T) bool { return equiv(ae, be) })
}
