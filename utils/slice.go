package utils

// UniqueUint removes duplicate values from a slice of uints, preserving
// first-seen order.
func UniqueUint(slice []uint) []uint {
	seen := make(map[uint]bool, len(slice))
	out := make([]uint, 0, len(slice))
	for _, v := range slice {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
