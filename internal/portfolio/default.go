package portfolio

import (
	_ "embed"
	"fmt"
)

//go:embed data/default_portfolio.json
var defaultDocumentJSON []byte

// DefaultJSON returns the compiled-in default document as JSON.
func DefaultJSON() []byte {
	out := make([]byte, len(defaultDocumentJSON))
	copy(out, defaultDocumentJSON)
	return out
}

// Default returns a fresh copy of the compiled-in default document.
func Default() Document {
	doc, err := DecodeBytes(defaultDocumentJSON)
	if err != nil {
		// The embedded file is checked by tests; reaching this is a build defect.
		panic(fmt.Sprintf("embedded default portfolio is invalid: %v", err))
	}
	return doc
}
