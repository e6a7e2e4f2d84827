package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// PropertyType classifies a listing.
type PropertyType string

const (
	PropertyTypeAll         PropertyType = "all"
	PropertyTypeFarm        PropertyType = "farm"
	PropertyTypeLand        PropertyType = "land"
	PropertyTypeCommercial  PropertyType = "commercial"
	PropertyTypeResidential PropertyType = "residential"
)

// PropertyTypes lists the filterable types in display order.
var PropertyTypes = []PropertyType{
	PropertyTypeAll,
	PropertyTypeFarm,
	PropertyTypeLand,
	PropertyTypeCommercial,
	PropertyTypeResidential,
}

// IsValid reports whether t is a known filter value ("all" included).
func (t PropertyType) IsValid() bool {
	for _, known := range PropertyTypes {
		if t == known {
			return true
		}
	}
	return false
}

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingSold      ListingStatus = "sold"
	ListingPending   ListingStatus = "pending"
	ListingRejected  ListingStatus = "rejected"
)

const (
	SizeUnitSqft  = "sqft"
	SizeUnitAcres = "acres"
)

// ID is an opaque identifier the backend sends as either a JSON string or number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: expected string or number, got %s", string(b))
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Amount is a whole-rupee price. Numeric strings ("1500000.00") are accepted.
type Amount int64

func (a *Amount) UnmarshalJSON(b []byte) error {
	f, ok, err := parseNumber(b)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if !ok {
		*a = 0
		return nil
	}
	*a = Amount(math.Round(f))
	return nil
}

// Decimal is a float that may arrive as a JSON number or numeric string.
type Decimal float64

func (d *Decimal) UnmarshalJSON(b []byte) error {
	f, ok, err := parseNumber(b)
	if err != nil {
		return fmt.Errorf("decimal: %w", err)
	}
	if !ok {
		*d = 0
		return nil
	}
	*d = Decimal(f)
	return nil
}

// Listing is a land/property record available for sale. Read-only to the client.
type Listing struct {
	ID           ID            `json:"id"`
	Title        string        `json:"title"`
	Location     string        `json:"location"`
	Address      string        `json:"address,omitempty"`
	PropertyType PropertyType  `json:"property_type"`
	Price        Amount        `json:"price"`
	Size         Decimal       `json:"size"`
	SizeUnit     string        `json:"size_unit,omitempty"`
	Images       []string      `json:"images_urls"`
	Status       ListingStatus `json:"status"`
	Latitude     *Decimal      `json:"latitude,omitempty"`
	Longitude    *Decimal      `json:"longitude,omitempty"`
	Description  string        `json:"description,omitempty"`
	Features     []string      `json:"features,omitempty"`
	CreatedAt    string        `json:"created_at,omitempty"`
}

// Unit returns the size unit, falling back to acres for farms and sqft otherwise.
func (l *Listing) Unit() string {
	if l.SizeUnit != "" {
		return l.SizeUnit
	}
	if l.PropertyType == PropertyTypeFarm {
		return SizeUnitAcres
	}
	return SizeUnitSqft
}

// SizeLabel renders "<size> <unit>", or "" when the size is unknown.
func (l *Listing) SizeLabel() string {
	if l.Size <= 0 {
		return ""
	}
	return strconv.FormatFloat(float64(l.Size), 'f', -1, 64) + " " + l.Unit()
}

// PriceLabel renders the price with Indian digit grouping, e.g. ₹15,00,000.
func (l *Listing) PriceLabel() string {
	return FormatINR(int64(l.Price))
}

// HasCoordinates reports whether a map link can be built.
func (l *Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// DirectionsURL links to turn-by-turn directions for the listing.
func (l *Listing) DirectionsURL() string {
	if !l.HasCoordinates() {
		return ""
	}
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%s,%s",
		strconv.FormatFloat(float64(*l.Latitude), 'f', -1, 64),
		strconv.FormatFloat(float64(*l.Longitude), 'f', -1, 64))
}

// FormatINR groups digits as lakh/crore: last three, then pairs.
func FormatINR(v int64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := strconv.FormatInt(v, 10)

	var out string
	if len(digits) <= 3 {
		out = digits
	} else {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var groups []string
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		out = strings.Join(append(groups, tail), ",")
	}

	if neg {
		return "-₹" + out
	}
	return "₹" + out
}

// parseNumber accepts a JSON number, a numeric string, or null (ok=false).
func parseNumber(b []byte) (float64, bool, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, false, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("not numeric: %q", s)
		}
		return f, true, nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return 0, false, err
	}
	return f, true, nil
}
