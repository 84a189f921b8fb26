package domain

import "testing"

func TestCoerceQueryType(t *testing.T) {
	tests := []struct {
		in   string
		want QueryType
	}{
		{"property_search", QueryProperty},
		{"knowledge", QueryKnowledge},
		{"mixed", QueryMixed},
		{"banana", QueryKnowledge},
		{"", QueryKnowledge},
		{"PROPERTY_SEARCH", QueryKnowledge}, // labels are exact
	}

	for _, tc := range tests {
		if got := CoerceQueryType(tc.in); got != tc.want {
			t.Errorf("CoerceQueryType(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestQueryType_Wants(t *testing.T) {
	if !QueryProperty.WantsProperties() || QueryProperty.WantsKnowledge() {
		t.Error("property_search should want only properties")
	}
	if QueryKnowledge.WantsProperties() || !QueryKnowledge.WantsKnowledge() {
		t.Error("knowledge should want only knowledge")
	}
	if !QueryMixed.WantsProperties() || !QueryMixed.WantsKnowledge() {
		t.Error("mixed should want both")
	}
}
