package model

// Results is the pagination envelope for plain entity searches. Total is the
// match count before pagination; Page echoes the requested 1-indexed page.
type Results[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
}

// JoinedResults is the envelope for the tuple-shaped joined searches.
type JoinedResults[T any] struct {
	Results []T `json:"results"`
	Total   int `json:"total"`
	Page    int `json:"page"`
}
