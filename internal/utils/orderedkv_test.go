package utils

import (
	"encoding/json"
	"testing"
)

func TestOrderedKVMapMarshal(t *testing.T) {
	om := OrderedKVMap[any]{}
	om.Set("link", "l", 4)
	om.Set("id", "c1", 0)
	om.Set("zeta", 1, 10)
	om.Set("alpha", true, 10)

	out, err := json.Marshal(om)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"c1","link":"l","alpha":true,"zeta":1}`
	if string(out) != want {
		t.Fatalf("got %s want %s", out, want)
	}
}

func TestOrderedKVMapSetKeepsPosition(t *testing.T) {
	om := OrderedKVMap[any]{}
	om.Set("id", "c1", 0)
	om.Set("id", 42, 10)

	out, _ := json.Marshal(om)
	if string(out) != `{"id":42}` {
		t.Fatalf("unexpected %s", out)
	}
}
