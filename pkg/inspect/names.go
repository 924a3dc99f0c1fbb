package inspect

import (
	"slices"
	"strings"

	"github.com/vtprobe/vtprobe-go/pkg/hal"
)

// MatchNames returns the entry names starting with prefix
// (case-insensitive), sorted and without duplicates.
func MatchNames(entries []hal.Entry, prefix string) []string {
	lprefix := strings.ToLower(prefix)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(strings.ToLower(e.Name), lprefix) {
			out = append(out, e.Name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// VendorNames returns the names outside the platform namespaces, i.e. the
// vendor tags a device defines.
func VendorNames(entries []hal.Entry) []string {
	var out []string
	for _, e := range entries {
		if !isPlatformName(e.Name) {
			out = append(out, e.Name)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func isPlatformName(name string) bool {
	return strings.HasPrefix(name, "android.") || strings.HasPrefix(name, "com.android.")
}
