package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompareWaves(t *testing.T) {
	tests := []struct {
		name     string
		x        *int
		y        *int
		expected int
	}{
		{"both nil are equal", nil, nil, 0},
		{"nil sorts after defined", nil, Wave(5), 1},
		{"defined sorts before nil", Wave(5), nil, -1},
		{"lower number first", Wave(3), Wave(5), -1},
		{"higher number after", Wave(5), Wave(3), 1},
		{"same number equal", Wave(2), Wave(2), 0},
		{"negative numbers before zero", Wave(-1), Wave(0), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareWaves(tt.x, tt.y))
		})
	}
}

func TestSortWaves(t *testing.T) {
	waves := []*int{nil, Wave(3), Wave(1), nil, Wave(3), Wave(2)}

	sorted := SortWaves(waves)

	assert.Len(t, sorted, 4, "Duplicates should be collapsed into one tier each")
	assert.Equal(t, 1, *sorted[0])
	assert.Equal(t, 2, *sorted[1])
	assert.Equal(t, 3, *sorted[2])
	assert.Nil(t, sorted[3], "Nil wave should be drawn last")
}

func TestSortWaves_DoesNotModifyInput(t *testing.T) {
	waves := []*int{Wave(2), Wave(1)}

	SortWaves(waves)

	assert.Equal(t, 2, *waves[0])
	assert.Equal(t, 1, *waves[1])
}
