package query

import (
	"slices"
	"strings"
)

// ImagePreference lists negotiable image formats, best first. The last
// entry is served when the client names none of the others.
var ImagePreference = []string{"avif", "webp", "jpg"}

var imageMediaTypes = map[string]string{
	"avif": "image/avif",
	"webp": "image/webp",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

// ContentType returns the media type for an image extension.
func ContentType(extension string) string {
	if mediaType, ok := imageMediaTypes[strings.ToLower(extension)]; ok {
		return mediaType
	}
	return "application/octet-stream"
}

// NegotiateImage picks the best available extension for accept. Formats
// before the fallback are chosen only when accept names their media type
// explicitly; the fallback is chosen whenever it is available. It returns
// "" when nothing available is acceptable.
func NegotiateImage(accept string, available []string) string {
	if len(ImagePreference) == 0 {
		return ""
	}
	accepted := acceptedTypes(accept)
	last := len(ImagePreference) - 1
	for i, extension := range ImagePreference {
		if !slices.Contains(available, extension) {
			continue
		}
		if i == last || accepted[ContentType(extension)] {
			return extension
		}
	}
	return ""
}

// acceptedTypes parses an Accept header, ignoring entries with q=0.
func acceptedTypes(accept string) map[string]bool {
	types := map[string]bool{}
	for _, part := range strings.Split(accept, ",") {
		fields := strings.Split(part, ";")
		mediaType := strings.ToLower(strings.TrimSpace(fields[0]))
		if mediaType == "" {
			continue
		}
		rejected := false
		for _, param := range fields[1:] {
			name, value, _ := strings.Cut(strings.TrimSpace(param), "=")
			if strings.EqualFold(name, "q") && isZeroQuality(value) {
				rejected = true
			}
		}
		if !rejected {
			types[mediaType] = true
		}
	}
	return types
}

func isZeroQuality(value string) bool {
	value = strings.TrimSpace(value)
	return strings.Trim(strings.TrimPrefix(value, "0."), "0") == "" && strings.HasPrefix(value, "0")
}
