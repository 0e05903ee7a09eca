package eligibility

import "slices"

// CompareWaves orders optional selection waves. A nil wave sorts after every defined wave.
// Returns -1 if x is drawn before y, 1 if after, 0 if they are the same tier.
func CompareWaves(x, y *int) int {
	switch {
	case x == nil && y == nil:
		return 0
	case x == nil:
		return 1
	case y == nil:
		return -1
	case *x < *y:
		return -1
	case *x > *y:
		return 1
	default:
		return 0
	}
}

// SameWave reports whether two optional waves belong to the same tier
func SameWave(x, y *int) bool {
	return CompareWaves(x, y) == 0
}

// SortWaves returns the distinct waves in draw order (lowest number first, nil last)
func SortWaves(waves []*int) []*int {
	sorted := slices.Clone(waves)
	slices.SortStableFunc(sorted, CompareWaves)
	return slices.CompactFunc(sorted, SameWave)
}

// Wave returns a pointer to n, for building configurations
func Wave(n int) *int {
	return &n
}
