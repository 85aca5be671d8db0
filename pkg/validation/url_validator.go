package validation

import (
	"net/url"
	"path"
	"slices"
	"strings"

	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
)

// URLValidator guards remote image references before anything is fetched.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator allows http, https and azblob references to any host.
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https", "azblob"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ParseImageURL validates a remote reference and returns it parsed. For
// azblob references the host is the container and the path is the blob name.
func (v *URLValidator) ParseImageURL(imageURL string) (*url.URL, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, apperrors.NewValidationError("image reference cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image reference", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if !slices.Contains(v.allowedSchemes, scheme) {
		return nil, apperrors.NewValidationError("scheme "+parsedURL.Scheme+" not allowed", nil)
	}

	if parsedURL.Host == "" {
		return nil, apperrors.NewValidationError("image reference must have a host", nil)
	}

	if scheme == "azblob" && strings.Trim(parsedURL.Path, "/") == "" {
		return nil, apperrors.NewValidationError("azblob reference must name a blob", nil)
	}

	if len(v.allowedHosts) > 0 && !slices.Contains(v.allowedHosts, parsedURL.Hostname()) {
		return nil, apperrors.NewValidationError("host "+parsedURL.Hostname()+" not allowed", nil)
	}

	return parsedURL, nil
}

// ValidateImageURL reports whether imageURL is an acceptable remote reference.
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	_, err := v.ParseImageURL(imageURL)
	return err
}

// ReferenceName returns the file name part of a reference, used for the
// extension check before download.
func ReferenceName(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(ref)
}
