package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultLimit is the fallback page size when the client omits limit.
	DefaultLimit = 20
	// DefaultMaxLimit caps the supported page size to prevent unbounded queries.
	DefaultMaxLimit = 100
)

var (
	ErrInvalidPage  = errors.New("pagination: invalid page")
	ErrInvalidLimit = errors.New("pagination: invalid limit")
)

// Params bundles the page-number pagination values extracted from a request.
type Params struct {
	Page  int
	Limit int
}

// Options control the defaults and bounds applied while parsing.
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

// FromRequest parses the page and limit query parameters from the request.
func FromRequest(r *http.Request, opts Options) (Params, error) {
	if r == nil {
		return Params{}, errors.New("pagination: nil request")
	}
	return Parse(r.URL.Query(), opts)
}

// Parse consumes the provided query values and returns normalised Params.
func Parse(values url.Values, opts Options) (Params, error) {
	if values == nil {
		values = url.Values{}
	}

	page, err := parsePositiveInt(values.Get("page"), 1, ErrInvalidPage)
	if err != nil {
		return Params{}, err
	}

	maxLimit := opts.MaxLimit
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	defaultLimit := opts.DefaultLimit
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}

	limit, err := parsePositiveInt(values.Get("limit"), defaultLimit, ErrInvalidLimit)
	if err != nil {
		return Params{}, err
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	return Params{Page: page, Limit: limit}, nil
}

func parsePositiveInt(raw string, fallback int, sentinel error) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: must be an integer", sentinel)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", sentinel)
	}
	return value, nil
}
