package router

import (
	"fmt"
	"strings"

	"github.com/Baah-Danso-Kenneth/StackNStay/internal/domain"
)

const classifyPrompt = `You are a query classifier for StackNStay, a vacation rental platform.

Classify the user's message into exactly one of these labels:
- property_search: the user wants to find or compare rental properties
- knowledge: the user asks about policies, booking, payments, or how the platform works
- mixed: the message does both

Respond with the label only, nothing else.`

const extractPrompt = `You are a filter extractor for StackNStay, a vacation rental platform.

Extract search constraints from the user's message. Respond with a JSON object
using only these keys, omitting any the message does not mention:
{
  "city": "Stockholm",
  "location": "Ghana",
  "min_price": 50,
  "max_price": 200,
  "bedrooms": 2,
  "guests": 4
}

Prices are in STX per night. Respond with JSON only, no prose.`

const propertyTemplate = `You are a friendly property rental assistant for StackNStay.

The user asked: %q

%s

Provide a helpful, conversational response. Highlight the best matches and explain why they're good fits. Keep it concise (2-3 sentences max). If properties were found, suggest what the user might want to do next.`

const knowledgeTemplate = `You are a helpful support assistant for StackNStay, a vacation rental platform.

The user asked: %q

%s

Answer using only the information above. If the information does not cover the question, say so honestly. Keep it concise (2-3 sentences max).`

const mixedTemplate = `You are a friendly assistant for StackNStay, a vacation rental platform.

The user asked: %q

%s

Answer the question using the platform information, then highlight the best matching properties. Keep it concise (3-4 sentences max).`

// buildContext renders the retrieved results into the context block fed to
// the completion provider. Empty lists render an explicit gap so the model
// acknowledges it instead of inventing listings.
func buildContext(queryType domain.QueryType, properties, snippets []domain.SearchResult) string {
	var b strings.Builder

	if queryType.WantsProperties() {
		if len(properties) > 0 {
			b.WriteString("Here are the properties I found:\n\n")
			for i, res := range properties {
				writeProperty(&b, i+1, res.Record)
			}
		} else {
			b.WriteString("I couldn't find any properties matching your criteria.\n")
		}
	}

	if queryType.WantsKnowledge() {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		if len(snippets) > 0 {
			b.WriteString("Relevant platform information:\n\n")
			for _, res := range snippets {
				writeSnippet(&b, res.Record)
			}
		} else {
			b.WriteString("No platform documentation matched the question.\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func writeProperty(b *strings.Builder, rank int, rec domain.Record) {
	title, _ := rec.Attrs.Str(domain.AttrTitle)
	if title == "" {
		title = rec.ID
	}
	fmt.Fprintf(b, "%d. **%s**\n", rank, title)

	if city, ok := rec.Attrs.Str(domain.AttrCity); ok && city != "" {
		fmt.Fprintf(b, "   - Location: %s\n", city)
	}
	if price, ok := rec.Attrs.Num(domain.AttrPrice); ok {
		fmt.Fprintf(b, "   - Price: %g STX/night\n", price)
	}
	if bedrooms, ok := rec.Attrs.Num(domain.AttrBedrooms); ok {
		fmt.Fprintf(b, "   - Bedrooms: %g\n", bedrooms)
	}
	if guests, ok := rec.Attrs.Num(domain.AttrMaxGuests); ok {
		fmt.Fprintf(b, "   - Guests: %g\n", guests)
	}
	if amenities, ok := rec.Attrs.Items(domain.AttrAmenities); ok && len(amenities) > 0 {
		if len(amenities) > 5 {
			amenities = amenities[:5]
		}
		fmt.Fprintf(b, "   - Amenities: %s\n", strings.Join(amenities, ", "))
	}
	b.WriteString("\n")
}

func writeSnippet(b *strings.Builder, rec domain.Record) {
	title, _ := rec.Attrs.Str(domain.AttrTitle)
	section, _ := rec.Attrs.Str(domain.AttrSection)
	body, _ := rec.Attrs.Str(domain.AttrDescription)

	switch {
	case section != "" && section != title:
		fmt.Fprintf(b, "### %s - %s\n%s\n\n", section, title, body)
	case title != "":
		fmt.Fprintf(b, "### %s\n%s\n\n", title, body)
	default:
		fmt.Fprintf(b, "%s\n\n", body)
	}
}

// responseTemplate picks the generation prompt for the classified intent.
func responseTemplate(queryType domain.QueryType) string {
	switch queryType {
	case domain.QueryProperty:
		return propertyTemplate
	case domain.QueryMixed:
		return mixedTemplate
	default:
		return knowledgeTemplate
	}
}

// suggestedActions mirrors the quick replies surfaced in the chat UI.
func suggestedActions(queryType domain.QueryType, haveProperties bool) []string {
	if !queryType.WantsProperties() {
		return []string{
			"Find me a place to stay",
			"How do payments work?",
			"What is the cancellation policy?",
		}
	}
	if haveProperties {
		return []string{
			"Show me cheaper options",
			"Tell me more about the first property",
			"Find properties with a pool",
		}
	}
	return []string{
		"Try a different location",
		"Adjust my budget",
		"See all available properties",
	}
}
