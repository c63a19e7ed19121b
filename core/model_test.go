package core

import "testing"

func TestModelFromLabel(t *testing.T) {
	cases := []struct {
		label string
		want  Model
	}{
		{"claude-3-opus-20240229", ModelOpus},
		{"OPUS", ModelOpus},
		{"gemini-haiku", ModelHaiku},
		{"claude-3-5-haiku-latest", ModelHaiku},
		{"claude-3-5-sonnet-20241022", ModelSonnet},
		{"unknown-model", ModelSonnet},
		{"", ModelSonnet},
	}
	for _, tc := range cases {
		if got := ModelFromLabel(tc.label); got != tc.want {
			t.Errorf("ModelFromLabel(%q) = %s, want %s", tc.label, got, tc.want)
		}
	}
}

func TestModelValid(t *testing.T) {
	for _, m := range []Model{ModelOpus, ModelSonnet, ModelHaiku} {
		if !m.Valid() {
			t.Errorf("%s should be valid", m)
		}
	}
	if Model("gpt-4o").Valid() {
		t.Error("raw labels are not valid tiers")
	}
}
