package util

import "testing"

func TestAlignUp(t *testing.T) {
	tests := []struct {
		off, align, want int
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 4, 12},
		{5, 1, 5},
		{7, 0, 7},
	}

	for _, tt := range tests {
		if got := AlignUp(tt.off, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.off, tt.align, got, tt.want)
		}
	}
}

func TestSliceHelpers(t *testing.T) {
	xs := []int{3, 1, 4}

	if !Contains(xs, 4) || Contains(xs, 5) {
		t.Error("Contains misbehaved")
	}

	if IndexOf(xs, 1) != 1 || IndexOf(xs, 9) != -1 {
		t.Error("IndexOf misbehaved")
	}

	doubled := Map(xs, func(x int) int { return x * 2 })
	if doubled[0] != 6 || doubled[2] != 8 {
		t.Error("Map misbehaved")
	}
}
