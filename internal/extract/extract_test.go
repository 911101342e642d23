package extract

import "testing"

func TestName(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{name: "my name is", text: "Hi, my name is Priya and I need help", want: "Priya", ok: true},
		{name: "case insensitive", text: "MY NAME IS carlos", want: "Carlos", ok: true},
		{name: "i'm with capital", text: "I'm Jordan, nice to meet you", want: "Jordan", ok: true},
		{name: "i am", text: "Well, I am Sam", want: "Sam", ok: true},
		{name: "call me", text: "Please just call me Max", want: "Max", ok: true},
		{name: "i'm feeling is not a name", text: "I'm feeling pretty low today", ok: false},
		{name: "i'm good is not a name", text: "I'm good thanks", ok: false},
		{name: "no pattern", text: "The weather has been terrible", ok: false},
		{name: "empty", text: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fact, ok := Name(tt.text)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && fact.Value != tt.want {
				t.Errorf("value = %q, want %q", fact.Value, tt.want)
			}
		})
	}
}

func TestProblem(t *testing.T) {
	long := "I keep putting off the work that matters and it is ruining my career"

	if _, ok := Problem("yeah"); ok {
		t.Error("backchannel accepted as problem description")
	}
	if _, ok := Problem("   "); ok {
		t.Error("whitespace accepted as problem description")
	}

	fact, ok := Problem(long)
	if !ok {
		t.Fatal("substantive utterance rejected")
	}
	if fact.Value != long {
		t.Errorf("value = %q, want original text", fact.Value)
	}
}
