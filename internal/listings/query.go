package listings

import (
	"net/url"
	"strconv"
	"strings"

	"land-marketplace/internal/common/errors"
	"land-marketplace/internal/models"
)

// QueryFilter is the filter state owned by the Engine.
type QueryFilter struct {
	ActiveType models.PropertyType
	// SearchText echoes the input as typed; DebouncedSearchText is what gets sent.
	SearchText          string
	DebouncedSearchText string
	Location            string
	MinPrice            *int64
	MaxPrice            *int64
}

// Params builds the query from non-empty fields only. "all" sends no type.
func (f QueryFilter) Params() url.Values {
	params := url.Values{}
	if f.ActiveType != "" && f.ActiveType != models.PropertyTypeAll {
		params.Set("property_type", string(f.ActiveType))
	}
	if s := strings.TrimSpace(f.DebouncedSearchText); s != "" {
		params.Set("search", s)
	}
	if loc := strings.TrimSpace(f.Location); loc != "" {
		params.Set("location", loc)
	}
	if f.MinPrice != nil {
		params.Set("min_price", strconv.FormatInt(*f.MinPrice, 10))
	}
	if f.MaxPrice != nil {
		params.Set("max_price", strconv.FormatInt(*f.MaxPrice, 10))
	}
	return params
}

func validateType(t models.PropertyType) error {
	if !t.IsValid() {
		return errors.NewValidationError("Unknown property type", map[string]string{
			"property_type": "must be one of all, farm, land, commercial, residential",
		})
	}
	return nil
}

func validatePriceRange(min, max *int64) error {
	fields := map[string]string{}
	if min != nil && *min < 0 {
		fields["min_price"] = "must not be negative"
	}
	if max != nil && *max < 0 {
		fields["max_price"] = "must not be negative"
	}
	if min != nil && max != nil && *min > *max {
		fields["min_price"] = "must not exceed the maximum price"
	}
	if len(fields) > 0 {
		return errors.NewValidationError("Enter a valid price range", fields)
	}
	return nil
}

func copyPrice(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
