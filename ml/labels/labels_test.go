package labels

import (
	"strings"
	"testing"
)

func TestFood101(t *testing.T) {
	if len(Food101) != 101 {
		t.Fatalf("len = %d", len(Food101))
	}
	if id, ok := Food101ID("waffles"); !ok || id != 100 {
		t.Fatalf("waffles id = %d %v", id, ok)
	}
	if _, ok := Food101ID("kimchi"); ok {
		t.Fatal("kimchi is not a Food-101 class")
	}
}

func TestNormalizeAndDisplay(t *testing.T) {
	cases := []struct{ in, key, display string }{
		{"Grilled Chicken", "grilled_chicken", "Grilled Chicken"},
		{"  apple pie ", "apple_pie", "Apple Pie"},
		{"PAD THAI", "pad_thai", "Pad Thai"},
		{"1/2 Cup Rice", "1_2_cup_rice", "1 2 Cup Rice"},
		{"../../escaped", "escaped", "Escaped"},
		{"Mac & Cheese", "mac_cheese", "Mac Cheese"},
		{"crème brûlée", "crème_brûlée", "Crème Brûlée"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.key {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.key)
		}
		if got := DisplayName(c.key); got != c.display {
			t.Errorf("DisplayName(%q) = %q, want %q", c.key, got, c.display)
		}
	}
}

func TestNormalizeIsOnePathSegment(t *testing.T) {
	for _, in := range []string{"", "..", ".", "/", "a/../b", `C:\food`, "  __  ", "x\x00y"} {
		key := Normalize(in)
		if key == "." || key == ".." || strings.ContainsAny(key, `/\.`) {
			t.Errorf("Normalize(%q) = %q", in, key)
		}
		if Normalize(key) != key {
			t.Errorf("Normalize not idempotent for %q", key)
		}
	}
	for _, k := range Food101 {
		if Normalize(k) != k {
			t.Errorf("Food-101 key %q changes under Normalize", k)
		}
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"a", "b"}, []string{"b", "c", "d"})
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
