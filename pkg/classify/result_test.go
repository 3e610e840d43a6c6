package classify

import (
	"encoding/json"
	"testing"
)

func TestResult(t *testing.T) {
	res, err := NewResult(
		Field{Name: FieldCommand, Label: "stop", Confidence: 1.7},
		Field{Name: FieldSpeaker, Label: "alice", Confidence: -0.2},
	)
	if err != nil {
		t.Fatal(err)
	}
	if res.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", res.Len())
	}
	cmd, ok := res.Field(FieldCommand)
	if !ok || cmd.Label != "stop" || cmd.Confidence != 1 {
		t.Errorf("command = %+v", cmd)
	}
	if spk, _ := res.Field(FieldSpeaker); spk.Confidence != 0 {
		t.Errorf("speaker confidence = %v, want 0", spk.Confidence)
	}
	if res.Label("missing") != "" {
		t.Error("missing field should have empty label")
	}
	if got := res.String(); got != "Command: stop, Speaker: alice" {
		t.Errorf("String() = %q", got)
	}

	fields := res.Fields()
	fields[0].Label = "go"
	if res.Label(FieldCommand) != "stop" {
		t.Error("Fields() exposes internal storage")
	}
}

func TestResultValidation(t *testing.T) {
	if _, err := NewResult(Field{Label: "x"}); err == nil {
		t.Error("unnamed field accepted")
	}
	if _, err := NewResult(Field{Name: "a"}, Field{Name: "a"}); err == nil {
		t.Error("duplicate field accepted")
	}
}

func TestResultJSON(t *testing.T) {
	res, _ := NewResult(Field{Name: FieldCommand, Label: "left", Confidence: 0.5})
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var back Result
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if f, _ := back.Field(FieldCommand); f.Label != "left" || f.Confidence != 0.5 {
		t.Errorf("decoded = %+v", f)
	}
}
