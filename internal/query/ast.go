// Package query validates raw query documents against the insight grammar
// and executes validated queries against one dataset.
package query

// Filter is the closed tagged union of filter tree nodes. The validator
// produces it from the raw document; the engine pattern-matches it
// exhaustively.
type Filter interface{ isFilter() }

// All matches every record. It is the parse of an empty WHERE (and of empty
// AND/OR members, where the grammar permits them).
type All struct{}

// And intersects its children's result sets. Children is non-empty.
type And struct{ Children []Filter }

// Or unions its children's result sets. Children is non-empty.
type Or struct{ Children []Filter }

// Not inverts its child over the full record set.
type Not struct{ Child Filter }

// Is compares a string field against a wildcard pattern. Pattern carries at
// most one leading and one trailing asterisk.
type Is struct {
	Key     string // qualified key as written, e.g. "ubc_dept"
	Field   string // field suffix, e.g. "dept"
	Pattern string
}

// CompareOp is a numeric comparison operator.
type CompareOp string

// Numeric comparison operators of the grammar.
const (
	OpGT CompareOp = "GT"
	OpLT CompareOp = "LT"
	OpEQ CompareOp = "EQ"
)

// Compare tests a numeric field against a constant.
type Compare struct {
	Op    CompareOp
	Key   string
	Field string
	Value float64
}

func (All) isFilter()     {}
func (And) isFilter()     {}
func (Or) isFilter()      {}
func (Not) isFilter()     {}
func (Is) isFilter()      {}
func (Compare) isFilter() {}

// Dir is an ordering direction.
type Dir string

// Ordering directions of the grammar.
const (
	DirUp   Dir = "UP"
	DirDown Dir = "DOWN"
)

// Order describes result ordering. A plain-string ORDER parses to DirUp with
// a single key; the semantics are identical.
type Order struct {
	Dir  Dir
	Keys []string
}

// ApplyToken is a group aggregation function name.
type ApplyToken string

// The five aggregation kinds of the grammar.
const (
	TokenMax   ApplyToken = "MAX"
	TokenMin   ApplyToken = "MIN"
	TokenAvg   ApplyToken = "AVG"
	TokenSum   ApplyToken = "SUM"
	TokenCount ApplyToken = "COUNT"
)

// Apply binds a user-chosen result column name to one aggregation over a
// designated field.
type Apply struct {
	Name  string // the apply key, no underscores, unique per query
	Token ApplyToken
	Key   string // qualified key the aggregate reads
	Field string // field suffix of Key
}

// Transform is the optional grouping stage.
type Transform struct {
	GroupKeys []string // qualified keys, non-empty
	Applies   []Apply  // possibly empty
}

// Query is a validated, typed query document. Dataset carries the single id
// every qualified key in the document references.
type Query struct {
	Dataset   string
	Where     Filter
	Columns   []string
	Order     *Order
	Transform *Transform
}
