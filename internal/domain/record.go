package domain

// Well-known attribute keys shared by the property and knowledge corpora.
// The searchable-text builder and the filter engine address attributes by
// these names; everything else in the mapping is open.
const (
	AttrTitle       = "title"
	AttrCity        = "city"
	AttrCountry     = "country"
	AttrPrice       = "price"
	AttrAmenities   = "amenities"
	AttrMaxGuests   = "max_guests"
	AttrBedrooms    = "bedrooms"
	AttrBathrooms   = "bathrooms"
	AttrDescription = "description"
	AttrRating      = "rating"
	AttrBadges      = "badges"
	AttrSection     = "section"
)

// Record is one indexable unit: a property listing or a knowledge chunk.
// ID is unique within its corpus; re-indexing the same id replaces the
// prior entry. SearchableText is derived deterministically from the
// attributes by the corpus store before embedding.
type Record struct {
	ID             string     `json:"id"`
	SearchableText string     `json:"searchable_text"`
	Attrs          Attributes `json:"attributes"`
}
