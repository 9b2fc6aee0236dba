package genai

import (
	"errors"
	"testing"
)

func TestParse_PlainJSON(t *testing.T) {
	got, err := Parse(`{"summary": "fine", "score": 3}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["summary"] != "fine" {
		t.Errorf("summary = %v", got["summary"])
	}
}

func TestParse_FencedJSON(t *testing.T) {
	raw := "```json\n{\"key_findings\": [\"a\", \"b\"]}\n```"
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	findings, ok := got["key_findings"].([]interface{})
	if !ok || len(findings) != 2 {
		t.Errorf("key_findings = %v", got["key_findings"])
	}
}

func TestParse_FenceWithoutLanguageTag(t *testing.T) {
	raw := "```\n{\"a\": 1}\n```"
	if _, err := Parse(raw); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParse_ProseAroundObject(t *testing.T) {
	raw := "Here is the summary you asked for:\n{\"a\": 1}\nHope this helps!"
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["a"].(float64) != 1 {
		t.Errorf("a = %v", got["a"])
	}
}

func TestParse_TrailingComma(t *testing.T) {
	raw := `{"a": 1, "b": [1, 2,],}`
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["a"].(float64) != 1 {
		t.Errorf("a = %v", got["a"])
	}
}

func TestParse_TruncatedObject(t *testing.T) {
	// A max-token cutoff mid-object should still be recoverable.
	raw := `{"summary": "the child shows", "areas": ["social"`
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["summary"] != "the child shows" {
		t.Errorf("summary = %v", got["summary"])
	}
}

func TestParse_Unrecoverable(t *testing.T) {
	_, err := Parse("I could not produce a summary.")
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("expected ErrMalformedOutput, got %v", err)
	}
}

func TestRemoveTrailingCommas_InsideStrings(t *testing.T) {
	raw := `{"note": "a, }", "x": 1}`
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got["note"] != "a, }" {
		t.Errorf("note = %v", got["note"])
	}
}
