package prss

import (
	"strconv"
	"strings"
)

// subsetKey is the canonical encoding of a sorted player subset, e.g. "1,3,4".
// Every player derives the same key for the same subset, which is what lets
// the seed files line up across the group.
func subsetKey(subset []int32) string {
	parts := make([]string, len(subset))
	for i, id := range subset {
		parts[i] = strconv.FormatInt(int64(id), 10)
	}
	return strings.Join(parts, ",")
}

// enumerateSubsets lists all k-element subsets of the players 1..n in
// lexicographic order. The order is part of the setup contract: key material
// generated on one machine must map to the same subsets everywhere.
func enumerateSubsets(n, k int) [][]int32 {
	var out [][]int32
	cur := make([]int32, 0, k)
	var rec func(next int32)
	rec = func(next int32) {
		if len(cur) == k {
			out = append(out, append([]int32(nil), cur...))
			return
		}
		for id := next; int(id) <= n; id++ {
			cur = append(cur, id)
			rec(id + 1)
			cur = cur[:len(cur)-1]
		}
	}
	rec(1)
	return out
}

func contains(subset []int32, id int32) bool {
	for _, s := range subset {
		if s == id {
			return true
		}
	}
	return false
}

// complement returns the players of 1..n not in the sorted subset.
func complement(subset []int32, n int) []int32 {
	out := make([]int32, 0, n-len(subset))
	for id := int32(1); int(id) <= n; id++ {
		if !contains(subset, id) {
			out = append(out, id)
		}
	}
	return out
}
