package scans

import "strings"

const defaultImagePrefix = "data:image/jpeg;base64,"

// AnalysisRequest is one inbound analysis call after authentication.
type AnalysisRequest struct {
	UserID string
	Image  string
}

// ValidateRequest checks identity and image presence and returns the request
// with its image normalized to an inline data URL.
func ValidateRequest(req AnalysisRequest) (AnalysisRequest, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return AnalysisRequest{}, ErrUnauthorized
	}
	if strings.TrimSpace(req.Image) == "" {
		return AnalysisRequest{}, ErrImageRequired
	}
	req.Image = NormalizeImageRef(req.Image)
	return req, nil
}

// NormalizeImageRef passes data:image/ URLs through and wraps anything else
// as a JPEG data URL.
func NormalizeImageRef(image string) string {
	image = strings.TrimSpace(image)
	if strings.HasPrefix(image, "data:image/") {
		return image
	}
	return defaultImagePrefix + image
}
