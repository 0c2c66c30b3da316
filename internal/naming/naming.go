// Package naming derives thumbnail file names from source file names.
package naming

import "strings"

// Suffix is appended to the stem of every thumbnail name.
const Suffix = "_thumb.jpg"

// OutputName returns the thumbnail name for a source file name.
//
// The last "."-delimited extension is replaced by Suffix, so ".png" becomes
// "_thumb.jpg". A name without a dot or with a trailing dot is treated as
// having no extension, and Suffix is appended to the whole name.
func OutputName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return name + Suffix
	}
	return name[:i] + Suffix
}

// IsThumbnail reports whether name is already a thumbnail name.
func IsThumbnail(name string) bool {
	return strings.HasSuffix(name, Suffix)
}
