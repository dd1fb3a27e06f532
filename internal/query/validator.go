package query

import (
	"strings"

	"insightcore/pkg/domain"
)

// Validator checks a raw query document against the grammar and produces the
// typed AST. It fails with a domain.InsightError on the first violation found;
// there is no partial result. The zero value is ready to use. A Validator is
// not safe for concurrent use: it keeps per-call scratch state (the locked
// dataset id and, once transformations are seen, the set of names COLUMNS may
// legally reference).
type Validator struct {
	datasetID string
	legal     map[string]struct{}
}

// DatasetID returns the dataset id extracted by the last successful Validate.
func (v *Validator) DatasetID() string { return v.datasetID }

// Validate walks the document depth-first and returns the typed query, or the
// first violation as a domain.InsightError.
func (v *Validator) Validate(doc any) (*Query, error) {
	v.datasetID = ""
	v.legal = make(map[string]struct{})

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, domain.InsightError{Reason: "query must be an object"}
	}
	rawWhere, hasWhere := obj["WHERE"]
	rawOptions, hasOptions := obj["OPTIONS"]
	rawTransform, hasTransform := obj["TRANSFORMATIONS"]
	if !hasWhere {
		return nil, domain.InsightError{Reason: "query missing WHERE"}
	}
	if !hasOptions {
		return nil, domain.InsightError{Reason: "query missing OPTIONS"}
	}
	want := 2
	if hasTransform {
		want = 3
	}
	if len(obj) != want {
		return nil, domain.InsightError{Reason: "query has unexpected extra keys"}
	}

	where, err := v.validateWhere(rawWhere)
	if err != nil {
		return nil, err
	}
	var transform *Transform
	if hasTransform {
		if transform, err = v.validateTransformations(rawTransform); err != nil {
			return nil, err
		}
	}
	columns, order, err := v.validateOptions(rawOptions, transform != nil)
	if err != nil {
		return nil, err
	}
	return &Query{
		Dataset:   v.datasetID,
		Where:     where,
		Columns:   columns,
		Order:     order,
		Transform: transform,
	}, nil
}

func (v *Validator) validateWhere(raw any) (Filter, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.InsightError{Reason: "WHERE must be an object"}
	}
	if len(obj) == 0 {
		return All{}, nil
	}
	if len(obj) != 1 {
		return nil, domain.InsightError{Reason: "WHERE must have exactly one filter"}
	}
	return v.validateFilter(raw, false)
}

// validateFilter checks one filter node. allowEmpty admits the empty object
// (match-all), which the grammar permits for AND/OR members but not for the
// NOT operand.
func (v *Validator) validateFilter(raw any, allowEmpty bool) (Filter, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.InsightError{Reason: "filter must be an object"}
	}
	if len(obj) == 0 {
		if allowEmpty {
			return All{}, nil
		}
		return nil, domain.InsightError{Reason: "filter must not be empty"}
	}
	if len(obj) != 1 {
		return nil, domain.InsightError{Reason: "filter must have exactly one key"}
	}
	var op string
	var value any
	for k, val := range obj {
		op, value = k, val
	}
	switch op {
	case "AND", "OR":
		return v.validateLogic(op, value)
	case "NOT":
		child, err := v.validateFilter(value, false)
		if err != nil {
			return nil, err
		}
		return Not{Child: child}, nil
	case "IS":
		return v.validateIs(value)
	case "GT", "LT", "EQ":
		return v.validateCompare(CompareOp(op), value)
	default:
		return nil, domain.Insightf("invalid filter key %q", op)
	}
}

func (v *Validator) validateLogic(op string, raw any) (Filter, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, domain.Insightf("%s must be an array", op)
	}
	if len(list) == 0 {
		return nil, domain.Insightf("%s must be a non-empty array", op)
	}
	children := make([]Filter, 0, len(list))
	for _, item := range list {
		child, err := v.validateFilter(item, true)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if op == "AND" {
		return And{Children: children}, nil
	}
	return Or{Children: children}, nil
}

func (v *Validator) validateIs(raw any) (Filter, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.InsightError{Reason: "IS must be an object"}
	}
	if len(obj) != 1 {
		return nil, domain.InsightError{Reason: "IS must have exactly one key"}
	}
	var key string
	var value any
	for k, val := range obj {
		key, value = k, val
	}
	field, err := v.qualifiedField(key, fieldString)
	if err != nil {
		return nil, err
	}
	pattern, ok := value.(string)
	if !ok {
		return nil, domain.InsightError{Reason: "IS pattern must be a string"}
	}
	core := strings.TrimPrefix(pattern, "*")
	core = strings.TrimSuffix(core, "*")
	if strings.Contains(core, "*") {
		return nil, domain.Insightf("IS pattern %q has an interior asterisk", pattern)
	}
	return Is{Key: key, Field: field, Pattern: pattern}, nil
}

func (v *Validator) validateCompare(op CompareOp, raw any) (Filter, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.Insightf("%s must be an object", op)
	}
	if len(obj) != 1 {
		return nil, domain.Insightf("%s must have exactly one key", op)
	}
	var key string
	var value any
	for k, val := range obj {
		key, value = k, val
	}
	field, err := v.qualifiedField(key, fieldNumeric)
	if err != nil {
		return nil, err
	}
	num, ok := toNumber(value)
	if !ok {
		return nil, domain.Insightf("%s value must be a number", op)
	}
	return Compare{Op: op, Key: key, Field: field, Value: num}, nil
}

func (v *Validator) validateTransformations(raw any) (*Transform, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.InsightError{Reason: "TRANSFORMATIONS must be an object"}
	}
	rawGroup, hasGroup := obj["GROUP"]
	rawApply, hasApply := obj["APPLY"]
	if !hasGroup || !hasApply || len(obj) != 2 {
		return nil, domain.InsightError{Reason: "TRANSFORMATIONS must have exactly GROUP and APPLY"}
	}

	groupList, ok := rawGroup.([]any)
	if !ok || len(groupList) == 0 {
		return nil, domain.InsightError{Reason: "GROUP must be a non-empty array"}
	}
	groupKeys := make([]string, 0, len(groupList))
	for _, item := range groupList {
		key, ok := item.(string)
		if !ok {
			return nil, domain.InsightError{Reason: "GROUP keys must be strings"}
		}
		if _, err := v.qualifiedField(key, fieldAny); err != nil {
			return nil, err
		}
		groupKeys = append(groupKeys, key)
		v.legal[key] = struct{}{}
	}

	applyList, ok := rawApply.([]any)
	if !ok {
		return nil, domain.InsightError{Reason: "APPLY must be an array"}
	}
	applies := make([]Apply, 0, len(applyList))
	seen := make(map[string]struct{}, len(applyList))
	for _, item := range applyList {
		apply, err := v.validateApplyRule(item, seen)
		if err != nil {
			return nil, err
		}
		applies = append(applies, apply)
		v.legal[apply.Name] = struct{}{}
	}
	return &Transform{GroupKeys: groupKeys, Applies: applies}, nil
}

func (v *Validator) validateApplyRule(raw any, seen map[string]struct{}) (Apply, error) {
	obj, ok := raw.(map[string]any)
	if !ok || len(obj) != 1 {
		return Apply{}, domain.InsightError{Reason: "apply rule must be an object with exactly one key"}
	}
	var name string
	var body any
	for k, val := range obj {
		name, body = k, val
	}
	if name == "" || strings.Contains(name, "_") {
		return Apply{}, domain.Insightf("invalid apply key %q", name)
	}
	if _, dup := seen[name]; dup {
		return Apply{}, domain.Insightf("duplicate apply key %q", name)
	}
	seen[name] = struct{}{}

	inner, ok := body.(map[string]any)
	if !ok || len(inner) != 1 {
		return Apply{}, domain.Insightf("apply rule %q must map one token to one key", name)
	}
	var token string
	var target any
	for k, val := range inner {
		token, target = k, val
	}
	applyToken := ApplyToken(token)
	switch applyToken {
	case TokenMax, TokenMin, TokenAvg, TokenSum, TokenCount:
	default:
		return Apply{}, domain.Insightf("invalid apply token %q", token)
	}
	key, ok := target.(string)
	if !ok {
		return Apply{}, domain.Insightf("apply rule %q target must be a key string", name)
	}
	need := fieldNumeric
	if applyToken == TokenCount {
		need = fieldAny
	}
	field, err := v.qualifiedField(key, need)
	if err != nil {
		return Apply{}, err
	}
	return Apply{Name: name, Token: applyToken, Key: key, Field: field}, nil
}

func (v *Validator) validateOptions(raw any, hasTransform bool) ([]string, *Order, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, nil, domain.InsightError{Reason: "OPTIONS must be an object"}
	}
	rawColumns, hasColumns := obj["COLUMNS"]
	if !hasColumns {
		return nil, nil, domain.InsightError{Reason: "OPTIONS missing COLUMNS"}
	}
	rawOrder, hasOrder := obj["ORDER"]
	want := 1
	if hasOrder {
		want = 2
	}
	if len(obj) != want {
		return nil, nil, domain.InsightError{Reason: "OPTIONS has unexpected extra keys"}
	}

	list, ok := rawColumns.([]any)
	if !ok || len(list) == 0 {
		return nil, nil, domain.InsightError{Reason: "COLUMNS must be a non-empty array"}
	}
	columns := make([]string, 0, len(list))
	inColumns := make(map[string]struct{}, len(list))
	for _, item := range list {
		key, ok := item.(string)
		if !ok {
			return nil, nil, domain.InsightError{Reason: "COLUMNS entries must be strings"}
		}
		if hasTransform {
			if _, legal := v.legal[key]; !legal {
				return nil, nil, domain.Insightf("COLUMNS key %q must appear in GROUP or APPLY", key)
			}
		} else {
			if _, err := v.qualifiedField(key, fieldAny); err != nil {
				return nil, nil, err
			}
		}
		columns = append(columns, key)
		inColumns[key] = struct{}{}
	}

	if !hasOrder {
		return columns, nil, nil
	}
	order, err := v.validateOrder(rawOrder, inColumns)
	if err != nil {
		return nil, nil, err
	}
	return columns, order, nil
}

func (v *Validator) validateOrder(raw any, inColumns map[string]struct{}) (*Order, error) {
	if key, ok := raw.(string); ok {
		if _, present := inColumns[key]; !present {
			return nil, domain.Insightf("ORDER key %q must appear in COLUMNS", key)
		}
		return &Order{Dir: DirUp, Keys: []string{key}}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, domain.InsightError{Reason: "ORDER must be a key or an object"}
	}
	rawDir, hasDir := obj["dir"]
	rawKeys, hasKeys := obj["keys"]
	if !hasDir || !hasKeys || len(obj) != 2 {
		return nil, domain.InsightError{Reason: "ORDER object must have exactly dir and keys"}
	}
	dirStr, ok := rawDir.(string)
	if !ok || (Dir(dirStr) != DirUp && Dir(dirStr) != DirDown) {
		return nil, domain.InsightError{Reason: "ORDER dir must be UP or DOWN"}
	}
	list, ok := rawKeys.([]any)
	if !ok || len(list) == 0 {
		return nil, domain.InsightError{Reason: "ORDER keys must be a non-empty array"}
	}
	keys := make([]string, 0, len(list))
	for _, item := range list {
		key, ok := item.(string)
		if !ok {
			return nil, domain.InsightError{Reason: "ORDER keys must be strings"}
		}
		if _, present := inColumns[key]; !present {
			return nil, domain.Insightf("ORDER key %q must appear in COLUMNS", key)
		}
		keys = append(keys, key)
	}
	return &Order{Dir: Dir(dirStr), Keys: keys}, nil
}

// fieldClass constrains which field suffixes a qualified key may carry.
type fieldClass int

const (
	fieldAny fieldClass = iota
	fieldNumeric
	fieldString
)

// qualifiedField splits an "<id>_<field>" key, checks the field suffix
// against the requested class, and locks or checks the document's dataset id.
func (v *Validator) qualifiedField(key string, class fieldClass) (string, error) {
	idx := strings.Index(key, "_")
	if idx <= 0 || idx == len(key)-1 {
		return "", domain.Insightf("invalid key %q: want <id>_<field>", key)
	}
	id, field := key[:idx], key[idx+1:]
	switch class {
	case fieldNumeric:
		if !domain.IsNumericField(field) {
			return "", domain.Insightf("key %q does not name a numeric field", key)
		}
	case fieldString:
		if !domain.IsStringField(field) {
			return "", domain.Insightf("key %q does not name a string field", key)
		}
	default:
		if !domain.IsNumericField(field) && !domain.IsStringField(field) {
			return "", domain.Insightf("key %q does not name a known field", key)
		}
	}
	if v.datasetID == "" {
		v.datasetID = id
	} else if id != v.datasetID {
		return "", domain.Insightf("key %q references dataset %q, query is locked to %q", key, id, v.datasetID)
	}
	return field, nil
}

// toNumber accepts the numeric shapes a decoded JSON document (or a test
// fixture built from Go literals) can carry.
func toNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
