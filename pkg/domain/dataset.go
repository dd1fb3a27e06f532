package domain

import "strings"

// Dataset is a named, kinded, ordered collection of records. It is the unit
// of storage, query, and persistence. Datasets are immutable after creation;
// removal unlinks them from the store without mutating the value, so in-flight
// queries holding a reference observe a consistent snapshot.
type Dataset struct {
	ID      string
	Kind    Kind
	Records []Record
}

// NumRows returns the cached row count invariant: always len(Records).
func (d *Dataset) NumRows() int { return len(d.Records) }

// Info returns the listing triple for the dataset.
func (d *Dataset) Info() DatasetInfo {
	return DatasetInfo{ID: d.ID, Kind: d.Kind, NumRows: len(d.Records)}
}

// Clone returns a dataset sharing record values but owning its slice header,
// keeping copy-on-write semantics cheap for the store.
func (d *Dataset) Clone() *Dataset {
	records := make([]Record, len(d.Records))
	copy(records, d.Records)
	return &Dataset{ID: d.ID, Kind: d.Kind, Records: records}
}

// DatasetInfo is the listing envelope exposed by the store.
type DatasetInfo struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	NumRows int    `json:"numRows"`
}

// ValidID reports whether id is a syntactically legal dataset id: non-empty
// after trimming whitespace and free of underscores (the qualified-key
// separator).
func ValidID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.Contains(id, "_")
}
