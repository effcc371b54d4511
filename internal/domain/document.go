package domain

// Document is one retrieved result under analysis. The analysis engine reads
// only ID and Vector; display fields and Payload pass through unchanged.
type Document struct {
	ID       string
	Title    string
	Snippet  string
	URL      string
	Rank     int
	Provider string
	Payload  map[string]any
	Vector   []float32 // not exposed to clients
}

// Content returns the text that gets embedded: title and snippet combined,
// the same shape the search providers hand back.
func (d *Document) Content() string {
	switch {
	case d.Title == "":
		return d.Snippet
	case d.Snippet == "":
		return d.Title
	default:
		return d.Title + " " + d.Snippet
	}
}
