package model

type Book struct {
	ISBN    string   `json:"isbn"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
}

type FindBook struct {
	ISBN  *string `json:"isbn"`
	Title *string `json:"title"`
}

type BookCreateRequest struct {
	ISBN    string   `json:"isbn"`
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
}

type Author struct {
	AuthorID int64  `json:"author_id"`
	Name     string `json:"name"`
}
