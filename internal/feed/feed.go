// Package feed ingests documents from upstream transaction sources so
// they can be run through the analysis pipeline: OFX/QFX statement files
// become bank_statement records, Plaid and SimpleFIN transaction pulls
// become transaction_feed records.
package feed

import (
	"context"

	"github.com/Veraticus/docket/internal/model"
)

// Item is one document ready for analysis.
type Item struct {
	Record       model.DocumentRecord
	Identity     string
	DocumentType model.DocumentType
}

// Source fetches documents from an upstream system. Implementations
// decide what one fetch covers (a statement file, a date range pull);
// the caller analyzes every returned item.
type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}
