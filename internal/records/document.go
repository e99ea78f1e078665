package records

import "time"

// Document is a fetched debtor info document.
type Document struct {
	IRI         string    `json:"iri"`
	ContentType string    `json:"contentType"`
	SHA256      string    `json:"sha256"`
	Content     []byte    `json:"content"`
	FetchedAt   time.Time `json:"fetchedAt"`
}
