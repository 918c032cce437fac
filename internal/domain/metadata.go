package domain

// Metadata is the {title, description, image_url} triple produced by extraction
type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
}

// IsZero reports whether no field carries a value
func (m Metadata) IsZero() bool {
	return m.Title == "" && m.Description == "" && m.ImageURL == ""
}
