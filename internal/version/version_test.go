package version

import "testing"

func TestAtLeast(t *testing.T) {
	cases := []struct {
		v1, v2 string
		want   bool
	}{
		{"1.2.0", "1.2.0", true},
		{"1.3.0", "1.2.9", true},
		{"1.2.0", "1.3.0", false},
		{"2.0.0", "1.9.9", true},
		{"1.10.0", "1.9.0", true},

		// Missing components count as zero.
		{"1.2", "1.2.0", true},
		{"1.2.0", "1.2", true},
		{"1.2", "1.2.1", false},
		{"1.2.1", "1.2", true},

		// Non-numeric components count as zero.
		{"1.x.0", "1.0.0", true},
		{"1.x.0", "1.1.0", false},
		{"abc", "0", true},

		{"", "", true},
		{"", "0.0.1", false},
		{"0.0.1", "", true},
	}

	for _, tc := range cases {
		if got := AtLeast(tc.v1, tc.v2); got != tc.want {
			t.Errorf("AtLeast(%q, %q) = %v, want %v", tc.v1, tc.v2, got, tc.want)
		}
	}
}
