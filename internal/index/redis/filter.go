package redis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/db"
	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

// buildPrefilter translates the filter set into an FT.SEARCH pre-filter
// string. Only keys whose server-side semantics match the filter engine
// are pushed down:
//
//   - city: exact tag match.
//   - min_price, and strictly positive bedrooms/guests: numeric floors.
//     A row missing the field is excluded by the FT range filter, which
//     is what the engine does for these keys when the floor is positive
//     (a missing count reads as 0).
//   - max_price is NOT pushed: a row with no stored price must pass a
//     price ceiling, and an FT range filter would drop it.
//   - location is NOT pushed: the fuzzy multi-field substring rule has no
//     FT equivalent.
//
// The engine re-checks every candidate regardless, so pushdown is purely
// a recall optimization for the fixed-k window.
func buildPrefilter(f domain.Filter) string {
	var parts []string

	if f.City != nil {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", domain.AttrCity, escapeTag(*f.City)))
	}
	if f.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("@%s:[%g +inf]", domain.AttrPrice, *f.MinPrice))
	}
	// A zero threshold is vacuous in the engine (a row missing the field
	// counts as 0 and passes), but an FT range excludes rows missing the
	// field entirely. Push only strictly positive floors.
	if f.Bedrooms != nil && *f.Bedrooms > 0 {
		parts = append(parts, fmt.Sprintf("@%s:[%g +inf]", domain.AttrBedrooms, *f.Bedrooms))
	}
	if f.Guests != nil && *f.Guests > 0 {
		parts = append(parts, fmt.Sprintf("@%s:[%g +inf]", domain.AttrMaxGuests, *f.Guests))
	}

	return strings.Join(parts, " ")
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

func asDBError(err error, target **db.Error) bool {
	return errors.As(err, target)
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
