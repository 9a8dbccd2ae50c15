package core

import "testing"

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.94.0", "1.93.0", 1},
		{"1.9.0", "1.10.0", -1},
		{"2.0", "2.0.1", -1},
		{"v1.2.3", "1.2.3", 0},
		{"10.0", "9.9", 1},
		{"1.0.0", "", 1},
		{"", "", 0},
		{"3.0.20", "3.0.9", 1},
	}

	for _, tt := range tests {
		if got := CompareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
