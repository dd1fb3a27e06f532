package domain

import "testing"

func TestDatasetKeyRoundTrip(t *testing.T) {
	cases := []DatasetKey{
		{Millis: 1627922239000, ID: "ubc", Kind: KindSections},
		{Millis: 1, ID: "rooms2024", Kind: KindRooms},
	}
	for _, key := range cases {
		parsed, err := ParseDatasetKey(key.String())
		if err != nil {
			t.Fatalf("parse %q: %v", key.String(), err)
		}
		if parsed != key {
			t.Fatalf("round trip %q: got %+v", key.String(), parsed)
		}
	}
}

func TestDatasetKeyWireFormat(t *testing.T) {
	key := DatasetKey{Millis: 1627922239000, ID: "ubc", Kind: KindSections}
	if got := key.String(); got != "1627922239000_ubc_Section.json" {
		t.Fatalf("section key = %q", got)
	}
	key.Kind = KindRooms
	if got := key.String(); got != "1627922239000_ubc_Room.json" {
		t.Fatalf("room key = %q", got)
	}
}

func TestParseDatasetKeyRejectsMalformed(t *testing.T) {
	bad := []string{
		"1627922239000_ubc_Section",       // no extension
		"1627922239000_ubc.json",          // missing variant
		"notamillis_ubc_Section.json",     // bad timestamp
		"1_ubc_Course.json",               // unknown variant
		"1_my_set_Section.json",           // underscore in id
		"1__Section.json",                 // empty id
	}
	for _, name := range bad {
		if _, err := ParseDatasetKey(name); err == nil {
			t.Errorf("ParseDatasetKey(%q) succeeded, want error", name)
		}
	}
}

func TestMatchesID(t *testing.T) {
	if !MatchesID("1627922239000_ubc_Section.json", "ubc") {
		t.Fatalf("expected match for ubc")
	}
	if MatchesID("1627922239000_ubc_Section.json", "sfu") {
		t.Fatalf("unexpected match for sfu")
	}
	if MatchesID("garbage", "ubc") {
		t.Fatalf("unparseable key must not match")
	}
}
