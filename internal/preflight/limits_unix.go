//go:build unix

package preflight

import (
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

// checkFileDescriptors verifies the open-file limit leaves room for children.
func checkFileDescriptors() Check {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	actual := int(limit.Cur)
	if actual < 0 {
		// RLIM_INFINITY
		actual = math.MaxInt32
	}
	return Check{
		Name:     "file_descriptors",
		Required: minFileDescriptors,
		Actual:   actual,
		Passed:   actual >= minFileDescriptors,
		Message:  fmt.Sprintf("ulimit -n %d (need %d)", actual, minFileDescriptors),
		Fix:      "ulimit -n 1024 (or edit /etc/security/limits.conf)",
	}
}
