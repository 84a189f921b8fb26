package domain

// SearchResult is one ranked hit from a similarity search. Score is a
// similarity (higher is better, cosine on unit vectors); Rank is the
// 0-based position after filtering.
type SearchResult struct {
	Record Record  `json:"record"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}
