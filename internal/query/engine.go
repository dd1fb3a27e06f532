package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"insightcore/pkg/domain"
)

// Row is one projected result row, keyed by the COLUMNS entries (and apply
// keys) exactly as written in the query.
type Row map[string]any

// Engine executes a validated query against one dataset. It never mutates the
// dataset; all result rows are freshly allocated. The computation is
// synchronous and allocation-bounded by the result ceiling check, which runs
// before any projection or sorting work.
type Engine struct{}

// Execute runs the query and returns the ordered, projected rows.
func (Engine) Execute(ds *domain.Dataset, q *Query) ([]Row, error) {
	if ds.ID != q.Dataset {
		return nil, domain.Insightf("query addresses dataset %q, got %q", q.Dataset, ds.ID)
	}
	if err := checkKindFields(ds.Kind, q); err != nil {
		return nil, err
	}

	// A match-all query with no grouping stage cannot shrink below the raw
	// dataset size, so reject oversized ones before touching the records.
	if _, all := q.Where.(All); all && q.Transform == nil && ds.NumRows() > domain.ResultCeiling {
		return nil, domain.ResultTooLargeError{Count: ds.NumRows()}
	}

	mask := evaluate(ds.Records, q.Where)
	filtered := make([]domain.Record, 0, len(ds.Records))
	for i, keep := range mask {
		if keep {
			filtered = append(filtered, ds.Records[i])
		}
	}

	var rows []Row
	if q.Transform == nil {
		if len(filtered) > domain.ResultCeiling {
			return nil, domain.ResultTooLargeError{Count: len(filtered)}
		}
		rows = project(filtered, q.Columns)
	} else {
		groups := partition(filtered, q.Transform.GroupKeys)
		if len(groups) > domain.ResultCeiling {
			return nil, domain.ResultTooLargeError{Count: len(groups)}
		}
		var err error
		rows, err = aggregate(groups, q)
		if err != nil {
			return nil, err
		}
	}
	sortRows(rows, q.Order)
	return rows, nil
}

// checkKindFields rejects the rare query that is syntactically valid but
// addresses fields the dataset's record variant does not carry (e.g. seats on
// a sections dataset mixed in through COUNT). Field legality per variant is
// not always decidable from key syntax alone.
func checkKindFields(kind domain.Kind, q *Query) error {
	for _, field := range referencedFields(q) {
		if !domain.KindHasField(kind, field) {
			return domain.Insightf("%s dataset has no field %q", kind, field)
		}
	}
	return nil
}

func referencedFields(q *Query) []string {
	seen := make(map[string]struct{})
	collectFilterFields(q.Where, seen)
	if q.Transform != nil {
		for _, key := range q.Transform.GroupKeys {
			seen[fieldOf(key)] = struct{}{}
		}
		for _, apply := range q.Transform.Applies {
			seen[apply.Field] = struct{}{}
		}
	} else {
		for _, key := range q.Columns {
			seen[fieldOf(key)] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

func collectFilterFields(f Filter, seen map[string]struct{}) {
	switch node := f.(type) {
	case And:
		for _, c := range node.Children {
			collectFilterFields(c, seen)
		}
	case Or:
		for _, c := range node.Children {
			collectFilterFields(c, seen)
		}
	case Not:
		collectFilterFields(node.Child, seen)
	case Is:
		seen[node.Field] = struct{}{}
	case Compare:
		seen[node.Field] = struct{}{}
	}
}

// fieldOf strips the dataset id from a qualified key. Validation guarantees
// the underscore is present.
func fieldOf(key string) string {
	return key[strings.Index(key, "_")+1:]
}

// evaluate computes the filter as a boolean mask over the record slice.
// Masks keep set algebra order-preserving and duplicate-free by construction:
// record identity is slice position.
func evaluate(records []domain.Record, f Filter) []bool {
	mask := make([]bool, len(records))
	switch node := f.(type) {
	case All:
		for i := range mask {
			mask[i] = true
		}
	case And:
		copy(mask, evaluate(records, node.Children[0]))
		for _, child := range node.Children[1:] {
			if countTrue(mask) == 0 {
				break
			}
			childMask := evaluate(records, child)
			for i := range mask {
				mask[i] = mask[i] && childMask[i]
			}
		}
	case Or:
		for _, child := range node.Children {
			childMask := evaluate(records, child)
			for i := range mask {
				mask[i] = mask[i] || childMask[i]
			}
		}
	case Not:
		childMask := evaluate(records, node.Child)
		for i := range mask {
			mask[i] = !childMask[i]
		}
	case Is:
		for i, r := range records {
			if value, ok := r.StringField(node.Field); ok {
				mask[i] = matchWildcard(node.Pattern, value)
			}
		}
	case Compare:
		for i, r := range records {
			value, ok := r.NumericField(node.Field)
			if !ok {
				continue
			}
			switch node.Op {
			case OpGT:
				mask[i] = value > node.Value
			case OpLT:
				mask[i] = value < node.Value
			case OpEQ:
				mask[i] = value == node.Value
			}
		}
	}
	return mask
}

func countTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}

// matchWildcard applies the grammar's wildcard forms: exact match, "*" match
// all, leading-only suffix match, trailing-only prefix match, both substring.
func matchWildcard(pattern, value string) bool {
	leading := strings.HasPrefix(pattern, "*")
	trailing := strings.HasSuffix(pattern, "*") && pattern != "*"
	core := strings.TrimPrefix(pattern, "*")
	core = strings.TrimSuffix(core, "*")
	switch {
	case leading && trailing:
		return strings.Contains(value, core)
	case leading:
		return strings.HasSuffix(value, core)
	case trailing:
		return strings.HasPrefix(value, core)
	default:
		return value == pattern
	}
}

// project emits one row per surviving record with exactly the requested
// columns, values copied verbatim.
func project(records []domain.Record, columns []string) []Row {
	rows := make([]Row, 0, len(records))
	for _, r := range records {
		row := make(Row, len(columns))
		for _, key := range columns {
			row[key] = fieldValue(r, fieldOf(key))
		}
		rows = append(rows, row)
	}
	return rows
}

// fieldValue resolves a field generically. String fields (uuid included, so
// the identifier always projects as a string) win over numeric ones; the
// field sets are disjoint so the order is immaterial.
func fieldValue(r domain.Record, field string) any {
	if v, ok := r.StringField(field); ok {
		return v
	}
	if v, ok := r.NumericField(field); ok {
		return v
	}
	return nil
}

type group struct {
	members []domain.Record
}

// partition splits the filtered records into groups keyed by their GROUP
// field values. Groups are emitted in first-seen order; members keep filtered
// order.
func partition(records []domain.Record, groupKeys []string) []*group {
	var groups []*group
	index := make(map[string]*group)
	var keyBuf strings.Builder
	for _, r := range records {
		keyBuf.Reset()
		for _, key := range groupKeys {
			keyBuf.WriteString(valueString(fieldValue(r, fieldOf(key))))
			keyBuf.WriteByte(0x1f)
		}
		k := keyBuf.String()
		g, ok := index[k]
		if !ok {
			g = &group{}
			index[k] = g
			groups = append(groups, g)
		}
		g.members = append(g.members, r)
	}
	return groups
}

func valueString(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// aggregate builds one row per group: group keys copy the field value from
// the first member (equal across the group by construction), apply keys carry
// the computed aggregate.
func aggregate(groups []*group, q *Query) ([]Row, error) {
	applyByName := make(map[string]Apply, len(q.Transform.Applies))
	for _, a := range q.Transform.Applies {
		applyByName[a.Name] = a
	}
	groupKeys := make(map[string]struct{}, len(q.Transform.GroupKeys))
	for _, key := range q.Transform.GroupKeys {
		groupKeys[key] = struct{}{}
	}

	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		row := make(Row, len(q.Columns))
		for _, col := range q.Columns {
			if _, isGroupKey := groupKeys[col]; isGroupKey {
				row[col] = fieldValue(g.members[0], fieldOf(col))
				continue
			}
			apply, ok := applyByName[col]
			if !ok {
				return nil, domain.Insightf("column %q is neither a group key nor an apply key", col)
			}
			value, err := computeApply(apply, g.members)
			if err != nil {
				return nil, err
			}
			row[col] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// computeApply evaluates one aggregation over a group. SUM and AVG accumulate
// through an exact decimal sum and round half away from zero at two decimals
// exactly once, at the end; naive float accumulation drifts over large groups.
func computeApply(a Apply, members []domain.Record) (any, error) {
	switch a.Token {
	case TokenMax, TokenMin:
		best, ok := members[0].NumericField(a.Field)
		if !ok {
			return nil, domain.Insightf("field %q is not numeric", a.Field)
		}
		for _, r := range members[1:] {
			v, _ := r.NumericField(a.Field)
			if (a.Token == TokenMax && v > best) || (a.Token == TokenMin && v < best) {
				best = v
			}
		}
		return best, nil
	case TokenSum:
		sum, err := decimalSum(a.Field, members)
		if err != nil {
			return nil, err
		}
		out, _ := sum.Round(2).Float64()
		return out, nil
	case TokenAvg:
		sum, err := decimalSum(a.Field, members)
		if err != nil {
			return nil, err
		}
		avg := sum.DivRound(decimal.NewFromInt(int64(len(members))), 2)
		out, _ := avg.Float64()
		return out, nil
	case TokenCount:
		distinct := make(map[string]struct{})
		for _, r := range members {
			distinct[valueString(fieldValue(r, a.Field))] = struct{}{}
		}
		return float64(len(distinct)), nil
	default:
		return nil, domain.Insightf("invalid apply token %q", a.Token)
	}
}

func decimalSum(field string, members []domain.Record) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, r := range members {
		v, ok := r.NumericField(field)
		if !ok {
			return decimal.Zero, domain.Insightf("field %q is not numeric", field)
		}
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum, nil
}

// sortRows applies the composite comparator stably, so ties keep
// filter-produced (or group first-seen) relative order.
func sortRows(rows []Row, order *Order) {
	if order == nil {
		return
	}
	descending := order.Dir == DirDown
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range order.Keys {
			c := compareValues(rows[i][key], rows[j][key])
			if c == 0 {
				continue
			}
			if descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders numeric cells numerically and string cells lexically.
// Validated queries never mix types under one key; the string fallback keeps
// the comparator total regardless.
func compareValues(a, b any) int {
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	return strings.Compare(valueString(a), valueString(b))
}
