// Package domain defines the typed record model, dataset value types, and
// persistence contracts used by insightcore.
package domain

import (
	"encoding/json"
	"strconv"
)

// Kind identifies the record variant a dataset holds.
type Kind string

const (
	// KindSections identifies datasets of course section records.
	KindSections Kind = "sections"
	// KindRooms identifies datasets of campus room records.
	KindRooms Kind = "rooms"
)

// Valid reports whether the kind is one of the closed variant set.
func (k Kind) Valid() bool {
	return k == KindSections || k == KindRooms
}

// Record is the common surface of the closed record variants. Field access is
// resolved by explicit name switching per variant; the query layer addresses
// fields dynamically, so both accessors report whether the name resolves.
type Record interface {
	Kind() Kind
	StringField(name string) (string, bool)
	NumericField(name string) (float64, bool)
	Equal(other Record) bool
}

// Numeric and string field suffix sets recognised by the query grammar.
var (
	numericFields = map[string]struct{}{
		"avg": {}, "pass": {}, "fail": {}, "audit": {}, "year": {},
		"lat": {}, "lon": {}, "seats": {},
	}
	stringFields = map[string]struct{}{
		"dept": {}, "id": {}, "instructor": {}, "title": {}, "uuid": {},
		"fullname": {}, "shortname": {}, "number": {}, "name": {},
		"address": {}, "type": {}, "furniture": {}, "href": {},
	}
)

// IsNumericField reports whether name is a numeric field suffix.
func IsNumericField(name string) bool {
	_, ok := numericFields[name]
	return ok
}

// IsStringField reports whether name is a string field suffix.
func IsStringField(name string) bool {
	_, ok := stringFields[name]
	return ok
}

// KindHasField reports whether the record variant for k carries the named
// field, probing the explicit accessors of a zero record.
func KindHasField(k Kind, name string) bool {
	var r Record
	switch k {
	case KindSections:
		r = Section{}
	case KindRooms:
		r = Room{}
	default:
		return false
	}
	if _, ok := r.StringField(name); ok {
		return true
	}
	_, ok := r.NumericField(name)
	return ok
}

// Section is one offering of a course. Immutable once constructed.
type Section struct {
	UUID       string  `json:"uuid"`
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Instructor string  `json:"instructor"`
	Dept       string  `json:"dept"`
	Year       float64 `json:"year"`
	Avg        float64 `json:"avg"`
	Pass       float64 `json:"pass"`
	Fail       float64 `json:"fail"`
	Audit      float64 `json:"audit"`
}

// Kind implements Record.
func (Section) Kind() Kind { return KindSections }

// StringField resolves a string-typed field by query name.
func (s Section) StringField(name string) (string, bool) {
	switch name {
	case "uuid":
		return s.UUID, true
	case "id":
		return s.ID, true
	case "title":
		return s.Title, true
	case "instructor":
		return s.Instructor, true
	case "dept":
		return s.Dept, true
	default:
		return "", false
	}
}

// NumericField resolves a numeric field by query name.
func (s Section) NumericField(name string) (float64, bool) {
	switch name {
	case "year":
		return s.Year, true
	case "avg":
		return s.Avg, true
	case "pass":
		return s.Pass, true
	case "fail":
		return s.Fail, true
	case "audit":
		return s.Audit, true
	default:
		return 0, false
	}
}

// Equal reports structural equality with another record of the same variant.
func (s Section) Equal(other Record) bool {
	o, ok := other.(Section)
	return ok && s == o
}

// UnmarshalJSON accepts uuid either as a JSON string or a number; the raw
// archive data carries numeric-looking identifiers that are treated as
// strings everywhere in the query layer.
func (s *Section) UnmarshalJSON(data []byte) error {
	type alias Section
	aux := struct {
		UUID json.RawMessage `json:"uuid"`
		*alias
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	s.UUID = coerceIdentity(aux.UUID)
	return nil
}

// coerceIdentity normalizes a raw uuid value to its string representation.
func coerceIdentity(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return strconv.FormatFloat(num, 'f', -1, 64)
	}
	return string(raw)
}

// Room is one bookable campus room. Immutable once constructed.
type Room struct {
	FullName  string  `json:"fullname"`
	ShortName string  `json:"shortname"`
	Number    string  `json:"number"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Type      string  `json:"type"`
	Furniture string  `json:"furniture"`
	Href      string  `json:"href"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Seats     float64 `json:"seats"`
}

// NewRoom constructs a room, deriving Name from the short name and number.
func NewRoom(fullName, shortName, number, address, roomType, furniture, href string, lat, lon, seats float64) Room {
	return Room{
		FullName:  fullName,
		ShortName: shortName,
		Number:    number,
		Name:      shortName + "_" + number,
		Address:   address,
		Type:      roomType,
		Furniture: furniture,
		Href:      href,
		Lat:       lat,
		Lon:       lon,
		Seats:     seats,
	}
}

// Kind implements Record.
func (Room) Kind() Kind { return KindRooms }

// StringField resolves a string-typed field by query name.
func (r Room) StringField(name string) (string, bool) {
	switch name {
	case "fullname":
		return r.FullName, true
	case "shortname":
		return r.ShortName, true
	case "number":
		return r.Number, true
	case "name":
		return r.Name, true
	case "address":
		return r.Address, true
	case "type":
		return r.Type, true
	case "furniture":
		return r.Furniture, true
	case "href":
		return r.Href, true
	default:
		return "", false
	}
}

// NumericField resolves a numeric field by query name.
func (r Room) NumericField(name string) (float64, bool) {
	switch name {
	case "lat":
		return r.Lat, true
	case "lon":
		return r.Lon, true
	case "seats":
		return r.Seats, true
	default:
		return 0, false
	}
}

// Equal reports structural equality with another record of the same variant.
func (r Room) Equal(other Record) bool {
	o, ok := other.(Room)
	return ok && r == o
}
