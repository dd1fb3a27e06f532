package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Variant suffixes used in persisted keys. These are part of the on-disk wire
// format and must not change.
const (
	keySuffixSection = "Section"
	keySuffixRoom    = "Room"
	keyExtension     = ".json"
)

// DatasetKey is the decoded form of a persisted dataset filename:
// <unixMillis>_<id>_<Section|Room>.json. The millis prefix recovers load
// order; the id and variant suffix make entries distinguishable by name alone.
type DatasetKey struct {
	Millis int64
	ID     string
	Kind   Kind
}

// String renders the key in wire form.
func (k DatasetKey) String() string {
	suffix := keySuffixSection
	if k.Kind == KindRooms {
		suffix = keySuffixRoom
	}
	return fmt.Sprintf("%d_%s_%s%s", k.Millis, k.ID, suffix, keyExtension)
}

// ParseDatasetKey decodes a persisted key. Dataset ids cannot contain
// underscores, so the three segments split unambiguously.
func ParseDatasetKey(name string) (DatasetKey, error) {
	base, ok := strings.CutSuffix(name, keyExtension)
	if !ok {
		return DatasetKey{}, fmt.Errorf("dataset key %q: missing %s extension", name, keyExtension)
	}
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return DatasetKey{}, fmt.Errorf("dataset key %q: want <millis>_<id>_<variant>", name)
	}
	millis, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return DatasetKey{}, fmt.Errorf("dataset key %q: bad timestamp: %w", name, err)
	}
	var kind Kind
	switch parts[2] {
	case keySuffixSection:
		kind = KindSections
	case keySuffixRoom:
		kind = KindRooms
	default:
		return DatasetKey{}, fmt.Errorf("dataset key %q: unknown variant %q", name, parts[2])
	}
	if !ValidID(parts[1]) {
		return DatasetKey{}, fmt.Errorf("dataset key %q: invalid id %q", name, parts[1])
	}
	return DatasetKey{Millis: millis, ID: parts[1], Kind: kind}, nil
}

// MatchesID reports whether a raw key name belongs to the given dataset id,
// i.e. matches the *_<id>_* pattern.
func MatchesID(name, id string) bool {
	key, err := ParseDatasetKey(name)
	return err == nil && key.ID == id
}
