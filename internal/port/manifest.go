package port

import "vectorstack/internal/domain"

// Manifest remembers which records each ingested file produced, so that
// changed or vanished files can have their old records deleted.
type Manifest interface {
	GetDoc(path string) (domain.Document, bool, error)

	PutDoc(doc domain.Document) error

	DeleteDoc(path string) error

	ListDocs() ([]domain.Document, error)
}
