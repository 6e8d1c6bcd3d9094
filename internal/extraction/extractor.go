// Package extraction is the seam to the field-extraction collaborator.
//
// Real extraction (OCR, model inference, citation scoring) runs out of
// process; this package defines the narrow interface the policy service
// calls and ships a deterministic placeholder implementation so the API is
// usable end to end before a backend is wired.
package extraction

import (
	"context"
	"fmt"

	"planlens/internal/policy/models"
)

// Document is a decoded upload handed to the extractor.
type Document struct {
	Content  []byte
	Filename string
}

// Extractor derives named fields with confidence scores and citations from
// a source document.
type Extractor interface {
	Extract(ctx context.Context, doc Document) ([]models.PolicyField, error)
}

// Static is the placeholder extractor. It emits a fixed field set tagged
// with its model version, mirroring what a real backend would return for a
// document it could not parse further.
type Static struct {
	modelVersion string
}

// NewStatic constructs the placeholder extractor.
func NewStatic(modelVersion string) *Static {
	return &Static{modelVersion: modelVersion}
}

func (s *Static) Extract(_ context.Context, doc Document) ([]models.PolicyField, error) {
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("extract: document is empty")
	}
	page := 1
	return []models.PolicyField{
		{
			Name:         "document_bytes",
			Value:        fmt.Sprintf("%d", len(doc.Content)),
			Confidence:   1.0,
			ModelVersion: s.modelVersion,
		},
		{
			Name:         "document_title",
			Value:        doc.Filename,
			Confidence:   0.95,
			SourcePage:   &page,
			Citation:     "Derived from upload metadata",
			ModelVersion: s.modelVersion,
		},
	}, nil
}
