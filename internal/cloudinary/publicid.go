package cloudinary

import (
	"strconv"
	"strings"
)

// PublicIDFromURL recovers the public id from a Cloudinary delivery URL
// so stored image references can be destroyed without keeping a separate
// column. Returns "" when the URL does not look like a Cloudinary one.
//
// Example:
//
//	https://res.cloudinary.com/demo/image/upload/v123/events/abc.jpg -> events/abc
func PublicIDFromURL(url string) string {
	idx := strings.Index(url, "/upload/")
	if idx < 0 {
		return ""
	}
	rest := url[idx+len("/upload/"):]
	// strip the version segment when present
	if strings.HasPrefix(rest, "v") {
		if slash := strings.IndexByte(rest, '/'); slash > 0 {
			if _, err := strconv.ParseUint(rest[1:slash], 10, 64); err == nil {
				rest = rest[slash+1:]
			}
		}
	}
	if dot := strings.LastIndexByte(rest, '.'); dot > 0 {
		rest = rest[:dot]
	}
	return rest
}
