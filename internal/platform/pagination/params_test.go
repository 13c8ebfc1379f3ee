package pagination

import (
	"errors"
	"net/url"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	params, err := Parse(url.Values{}, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Page != 1 {
		t.Errorf("page = %d, want 1", params.Page)
	}
	if params.Limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", params.Limit, DefaultLimit)
	}
}

func TestParseExplicitValues(t *testing.T) {
	values := url.Values{"page": {"3"}, "limit": {"50"}}
	params, err := Parse(values, Options{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Page != 3 || params.Limit != 50 {
		t.Errorf("params = %+v, want page 3 limit 50", params)
	}
}

func TestParseCapsLimit(t *testing.T) {
	values := url.Values{"limit": {"500"}}
	params, err := Parse(values, Options{MaxLimit: 100})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Limit != 100 {
		t.Errorf("limit = %d, want capped at 100", params.Limit)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		values url.Values
		want   error
	}{
		{"page zero", url.Values{"page": {"0"}}, ErrInvalidPage},
		{"page negative", url.Values{"page": {"-2"}}, ErrInvalidPage},
		{"page text", url.Values{"page": {"abc"}}, ErrInvalidPage},
		{"limit zero", url.Values{"limit": {"0"}}, ErrInvalidLimit},
		{"limit text", url.Values{"limit": {"ten"}}, ErrInvalidLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.values, Options{}); !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestParseDefaultLimitBoundedByMax(t *testing.T) {
	params, err := Parse(url.Values{}, Options{DefaultLimit: 200, MaxLimit: 50})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if params.Limit != 50 {
		t.Errorf("limit = %d, want 50", params.Limit)
	}
}
