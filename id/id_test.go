package id

import "testing"

func TestNodeIdStringRoundTrip(t *testing.T) {
	want := NewNodeId(7, 3)
	var got NodeId
	if err := got.UnmarshalText([]byte(want.String())); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %v, want %v", got, want)
	}
}

func TestNodeIdInvalid(t *testing.T) {
	if Invalid.IsValid() {
		t.Fatal("zero-value NodeId must not be valid")
	}
	if !NewNodeId(1, 1).IsValid() {
		t.Fatal("a minted NodeId must be valid")
	}
}

func TestNodeIdLess(t *testing.T) {
	a := NewNodeId(1, 1)
	b := NewNodeId(2, 1)
	c := NewNodeId(1, 2)
	if !a.Less(b) {
		t.Fatal("lower index should sort first")
	}
	if !a.Less(c) {
		t.Fatal("lower generation at same index should sort first")
	}
	if b.Less(a) {
		t.Fatal("Less must not be symmetric here")
	}
}

func TestUuidParseRoundTrip(t *testing.T) {
	u := NewUuid()
	parsed, err := ParseUuid(u.String())
	if err != nil {
		t.Fatalf("ParseUuid: %v", err)
	}
	if parsed != u {
		t.Fatalf("parsed uuid mismatch: got %v, want %v", parsed, u)
	}
	if NilUuid.IsNil() == false {
		t.Fatal("NilUuid must report IsNil")
	}
	if u.IsNil() {
		t.Fatal("a freshly minted uuid must not be nil")
	}
}

func TestUuidParseInvalid(t *testing.T) {
	if _, err := ParseUuid("not-a-uuid"); err == nil {
		t.Fatal("expected an error parsing a malformed uuid")
	}
}

func TestUuidMarshalText(t *testing.T) {
	u := NewUuid()
	var out NodeUuid
	b, err := u.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if err := out.UnmarshalText(b); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if out != u {
		t.Fatalf("uuid text round trip mismatch")
	}
}
