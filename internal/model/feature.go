package model

import "fmt"

// FeatureVector is an ordered list of numeric features with parallel
// names, sized exactly to the document schema it was extracted for.
// Vectors are ephemeral: one is built per analysis call and discarded.
type FeatureVector struct {
	Schema DocumentType
	Names  []string
	Values []float64
}

// Validate enforces the schema-length invariant. A mismatch means schema
// drift between the extractor and its schema table; it is a fatal bug,
// never padded or truncated away.
func (f *FeatureVector) Validate(want int) error {
	if len(f.Values) != want || len(f.Names) != want {
		return &ExtractionInvariantError{
			Schema:    f.Schema,
			GotValues: len(f.Values),
			GotNames:  len(f.Names),
			Want:      want,
		}
	}
	return nil
}

// Get returns the named feature value. The second return is false when
// the name is not part of the schema.
func (f *FeatureVector) Get(name string) (float64, bool) {
	for i, n := range f.Names {
		if n == name {
			return f.Values[i], true
		}
	}
	return 0, false
}

// GetOr returns the named feature value or a fallback when the name is
// absent from the schema.
func (f *FeatureVector) GetOr(name string, fallback float64) float64 {
	if v, ok := f.Get(name); ok {
		return v
	}
	return fallback
}

// ExtractionInvariantError reports a feature-vector length mismatch
// against the document schema.
type ExtractionInvariantError struct {
	Schema    DocumentType
	GotValues int
	GotNames  int
	Want      int
}

func (e *ExtractionInvariantError) Error() string {
	return fmt.Sprintf("feature vector for schema %q has %d values and %d names, schema requires %d",
		e.Schema, e.GotValues, e.GotNames, e.Want)
}
