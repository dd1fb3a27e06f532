package domain

import "encoding/json"

// EncodeRecords serializes a dataset's records as a JSON array in original
// order. The body format is shared by every archive driver.
func EncodeRecords(d *Dataset) ([]byte, error) {
	switch d.Kind {
	case KindSections:
		sections := make([]Section, 0, len(d.Records))
		for _, r := range d.Records {
			sections = append(sections, r.(Section))
		}
		return json.Marshal(sections)
	case KindRooms:
		rooms := make([]Room, 0, len(d.Records))
		for _, r := range d.Records {
			rooms = append(rooms, r.(Room))
		}
		return json.Marshal(rooms)
	default:
		return nil, Insightf("unknown dataset kind %q", d.Kind)
	}
}

// DecodeRecords reconstructs records of the given kind from a persisted JSON
// array, preserving order.
func DecodeRecords(kind Kind, payload []byte) ([]Record, error) {
	switch kind {
	case KindSections:
		var sections []Section
		if err := json.Unmarshal(payload, &sections); err != nil {
			return nil, err
		}
		records := make([]Record, len(sections))
		for i, s := range sections {
			records[i] = s
		}
		return records, nil
	case KindRooms:
		var rooms []Room
		if err := json.Unmarshal(payload, &rooms); err != nil {
			return nil, err
		}
		records := make([]Record, len(rooms))
		for i, r := range rooms {
			records[i] = r
		}
		return records, nil
	default:
		return nil, Insightf("unknown dataset kind %q", kind)
	}
}
