package tgapi

import "testing"

func TestUtf16Substring(t *testing.T) {
	text := "see https://evil.test/x here"
	got := Utf16Substring(text, 4, 17)
	want := "https://evil.test"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestStripEntitiesOfTypeRemovesURL(t *testing.T) {
	text := "see https://evil.test done"
	entities := []Entity{{Type: EntityURL, Offset: 4, Length: 17}}
	got := StripEntitiesOfType(text, entities, EntityURL)
	want := "see  done"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestStripEntitiesOfTypeIdempotent(t *testing.T) {
	text := "see https://evil.test done"
	entities := []Entity{{Type: EntityURL, Offset: 4, Length: 18}}
	once := StripEntitiesOfType(text, entities, EntityURL)
	twice := StripEntitiesOfType(once, nil, EntityURL)
	if once != twice {
		t.Fatalf("stripping again changed text: %q vs %q", once, twice)
	}
}

func TestStripEntitiesOfTypeMultipleOutOfOrder(t *testing.T) {
	text := "aaa bbb ccc"
	entities := []Entity{
		{Type: EntityURL, Offset: 8, Length: 3}, // ccc
		{Type: EntityURL, Offset: 0, Length: 3}, // aaa
	}
	got := StripEntitiesOfType(text, entities, EntityURL)
	want := " bbb "
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
