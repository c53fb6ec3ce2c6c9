// Package version owns the boot-time version checks: the remote
// minimum-version gate and the local marker-driven cache migration.
package version

import (
	"strconv"
	"strings"
)

// AtLeast reports whether v1 >= v2 under component-wise numeric comparison.
// Missing components count as 0; equal versions satisfy the check.
// Non-numeric components also count as 0.
func AtLeast(v1, v2 string) bool {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	length := len(parts1)
	if len(parts2) > length {
		length = len(parts2)
	}

	for i := 0; i < length; i++ {
		p1 := component(parts1, i)
		p2 := component(parts2, i)
		if p1 > p2 {
			return true
		}
		if p1 < p2 {
			return false
		}
	}
	return true
}

func component(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return n
}
