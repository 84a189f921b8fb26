package corpus

import (
	"fmt"
	"strings"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

// propertyText builds the embedding input for a property record. The
// field order is fixed (title, city, country, price, amenities, capacity,
// bedrooms, bathrooms, description, then reputation attributes) and must
// stay stable across releases: the embedding is sensitive to field order,
// so changing it invalidates every previously computed vector and forces
// a full re-index.
func propertyText(attrs domain.Attributes) string {
	var parts []string

	if title, ok := attrs.Str(domain.AttrTitle); ok && title != "" {
		parts = append(parts, "Property: "+title)
	}
	if city, ok := attrs.Str(domain.AttrCity); ok && city != "" {
		parts = append(parts, "Location: "+city)
	}
	if country, ok := attrs.Str(domain.AttrCountry); ok && country != "" {
		parts = append(parts, "Country: "+country)
	}
	if price, ok := attrs.Num(domain.AttrPrice); ok {
		parts = append(parts, fmt.Sprintf("Price: %g STX per night", price))
	}
	if amenities, ok := attrs.Items(domain.AttrAmenities); ok && len(amenities) > 0 {
		parts = append(parts, "Amenities: "+strings.Join(amenities, ", "))
	}
	if guests, ok := attrs.Num(domain.AttrMaxGuests); ok {
		parts = append(parts, fmt.Sprintf("Sleeps %g guests", guests))
	}
	if bedrooms, ok := attrs.Num(domain.AttrBedrooms); ok {
		parts = append(parts, fmt.Sprintf("%g bedrooms", bedrooms))
	}
	if bathrooms, ok := attrs.Num(domain.AttrBathrooms); ok {
		parts = append(parts, fmt.Sprintf("%g bathrooms", bathrooms))
	}
	if desc, ok := attrs.Str(domain.AttrDescription); ok && desc != "" {
		parts = append(parts, "Description: "+desc)
	}
	if rating, ok := attrs.Num(domain.AttrRating); ok {
		parts = append(parts, fmt.Sprintf("Rating: %g", rating))
	}
	if badges, ok := attrs.Items(domain.AttrBadges); ok && len(badges) > 0 {
		parts = append(parts, "Badges: "+strings.Join(badges, ", "))
	}

	return strings.Join(parts, ". ")
}

// chunkText builds the embedding input for a knowledge chunk:
// section, title, then body.
func chunkText(section, title, body string) string {
	return fmt.Sprintf("%s - %s\n\n%s", section, title, body)
}
