package domain

import "strings"

// Filter is the structured constraint set narrowing search results
// independent of semantic similarity. The key vocabulary is fixed; a nil
// field means the key is absent and vacuously true. Filters are built
// fresh per query turn and never mutated after construction.
type Filter struct {
	MinPrice *float64 `json:"min_price,omitempty"`
	MaxPrice *float64 `json:"max_price,omitempty"`
	City     *string  `json:"city,omitempty"`
	Location *string  `json:"location,omitempty"`
	Bedrooms *float64 `json:"bedrooms,omitempty"`
	Guests   *float64 `json:"guests,omitempty"`
}

// IsEmpty reports whether no filter keys are present.
func (f Filter) IsEmpty() bool {
	return f.MinPrice == nil && f.MaxPrice == nil && f.City == nil &&
		f.Location == nil && f.Bedrooms == nil && f.Guests == nil
}

// MergeFilters merges left-to-right: keys present in next win over prev.
func MergeFilters(prev, next Filter) Filter {
	out := prev
	if next.MinPrice != nil {
		out.MinPrice = next.MinPrice
	}
	if next.MaxPrice != nil {
		out.MaxPrice = next.MaxPrice
	}
	if next.City != nil {
		out.City = next.City
	}
	if next.Location != nil {
		out.Location = next.Location
	}
	if next.Bedrooms != nil {
		out.Bedrooms = next.Bedrooms
	}
	if next.Guests != nil {
		out.Guests = next.Guests
	}
	return out
}

// MatchesFilter evaluates the filter set against a record. Pure function,
// identical whether it post-filters in-process candidates or re-checks
// rows returned by the relational backend. A record passes when every
// present key passes.
//
// Missing-attribute semantics follow the corpus's historical behavior:
// a record without a price fails a min_price floor but passes a max_price
// ceiling; missing bedrooms/guests count as 0 and fail any positive
// threshold.
func MatchesFilter(rec Record, f Filter) bool {
	if f.MinPrice != nil {
		price, ok := rec.Attrs.Num(AttrPrice)
		if !ok || price < *f.MinPrice {
			return false
		}
	}
	if f.MaxPrice != nil {
		if price, ok := rec.Attrs.Num(AttrPrice); ok && price > *f.MaxPrice {
			return false
		}
	}
	if f.City != nil {
		city, _ := rec.Attrs.Str(AttrCity)
		if !strings.EqualFold(city, *f.City) {
			return false
		}
	}
	if f.Location != nil && !matchesLocation(rec.Attrs, *f.Location) {
		return false
	}
	if f.Bedrooms != nil {
		bedrooms, _ := rec.Attrs.Num(AttrBedrooms)
		if bedrooms < *f.Bedrooms {
			return false
		}
	}
	if f.Guests != nil {
		guests, _ := rec.Attrs.Num(AttrMaxGuests)
		if guests < *f.Guests {
			return false
		}
	}
	return true
}

// matchesLocation is the fuzzy location rule: case-insensitive substring
// match against city, country, title, and description, passing if any
// field contains the term.
func matchesLocation(attrs Attributes, term string) bool {
	needle := strings.ToLower(term)
	for _, key := range []string{AttrCity, AttrCountry, AttrTitle, AttrDescription} {
		if field, ok := attrs.Str(key); ok {
			if strings.Contains(strings.ToLower(field), needle) {
				return true
			}
		}
	}
	return false
}
