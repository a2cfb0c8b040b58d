package dedup

import "testing"

func TestNormalizer_Basic(t *testing.T) {
	n := NewNormalizer(nil)

	cases := []struct {
		in   string
		want string
	}{
		{"How do synapses stabilize?", "how do synapses stabilize"},
		{"  How   do\tsynapses\n stabilize ", "how do synapses stabilize"},
		{`"How do synapses stabilize?!"`, "how do synapses stabilize"},
		{"", ""},
	}
	for _, c := range cases {
		if got := n.Normalize(c.in); got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizer_StopPhrases(t *testing.T) {
	n := NewNormalizer([]string{"it remains unknown whether", "the question of"})

	got := n.Normalize("It remains unknown whether prions can cross the species barrier.")
	want := "prions can cross the species barrier"
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}

	// A statement that is nothing but a stop phrase keeps its text rather
	// than normalizing to the empty key.
	if got := n.Normalize("The question of."); got == "" {
		t.Error("Expected stop-phrase-only statement to keep a non-empty key")
	}
}

func TestNormalizer_StopPhraseWordBoundary(t *testing.T) {
	n := NewNormalizer([]string{"the question of"})

	// The phrase must end on a word boundary, not mid-word.
	got := n.Normalize("The question offshore drilling poses for reef ecosystems.")
	want := "the question offshore drilling poses for reef ecosystems"
	if got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}

	// With the boundary present the phrase still strips.
	got = n.Normalize("The question of reef ecosystem recovery.")
	if want := "reef ecosystem recovery"; got != want {
		t.Errorf("Normalize = %q, want %q", got, want)
	}
}

func TestNormalizer_Idempotent(t *testing.T) {
	n := NewNormalizer([]string{"it is not known whether"})

	inputs := []string{
		"It is not known whether the effect persists.",
		"(It is not known whether) the effect persists!",
		"plain statement",
		"",
	}
	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}
