package util

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

// ErrEmptyPayload is returned when there is nothing to decode.
var ErrEmptyPayload = errors.New("empty payload")

// DecodeDataURL decodes a base64 payload that may carry a data: prefix.
// The returned MIME type comes from the prefix, or is sniffed from the bytes.
func DecodeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hint string
	if strings.HasPrefix(s, "data:") {
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hint = meta[:semi]
			} else {
				hint = meta
			}
			s = s[idx+1:]
		}
	}
	if s == "" {
		return nil, "", ErrEmptyPayload
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		alt, altErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if altErr != nil {
			return nil, "", err
		}
		data = alt
	}
	if strings.TrimSpace(hint) == "" {
		hint = http.DetectContentType(data)
	}
	return data, hint, nil
}

// ImageExt maps an image MIME type to a file extension.
func ImageExt(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/heic":
		return ".heic"
	default:
		return ".jpg"
	}
}
