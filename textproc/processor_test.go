package textproc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBasicCleanup(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"um so this is like a test", "This is a test."},
		{"you know it works", "It works."},
		{"already done.", "Already done."},
		{"does it work?", "Does it work?"},
		{"um uh", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := BasicCleanup(tc.in); got != tc.want {
			t.Errorf("BasicCleanup(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStripArtifacts(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Output: fixed text", "fixed text"},
		{"Corrected text: \"fixed text\"", "fixed text"},
		{"\"quoted result\"", "quoted result"},
		{"line one\nline two", "line one line two"},
		{"  plain  ", "plain"},
	}
	for _, tc := range cases {
		if got := StripArtifacts(tc.in); got != tc.want {
			t.Errorf("StripArtifacts(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProcessorAcceptsValidRewrite(t *testing.T) {
	llm := &FakeLLM{Response: "I think we should ship it tomorrow."}
	p := NewProcessor(llm, 0.65, true)

	got := p.Process(context.Background(), "um i think we should ship it tomorrow", ToneAuto)
	if got != "I think we should ship it tomorrow." {
		t.Errorf("Process = %q", got)
	}
	prompts := llm.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "ship it tomorrow") {
		t.Errorf("prompt not sent: %v", prompts)
	}
}

func TestProcessorFallsBackOnLLMError(t *testing.T) {
	llm := &FakeLLM{Err: errors.New("connection refused")}
	p := NewProcessor(llm, 0.65, true)

	got := p.Process(context.Background(), "um ship it", ToneAuto)
	if got != "Ship it." {
		t.Errorf("fallback = %q, want basic cleanup", got)
	}
}

func TestProcessorRejectsHallucination(t *testing.T) {
	llm := &FakeLLM{Response: "the committee voted to postpone deployments pending architectural review"}
	p := NewProcessor(llm, 0.65, true)

	got := p.Process(context.Background(), "um ship it tomorrow", ToneAuto)
	if got != "Ship it tomorrow." {
		t.Errorf("rejected output not replaced by cleanup: %q", got)
	}
}

func TestProcessorValidationDisabled(t *testing.T) {
	llm := &FakeLLM{Response: "completely different text"}
	p := NewProcessor(llm, 0.65, false)

	got := p.Process(context.Background(), "um ship it tomorrow", ToneAuto)
	if got != "completely different text" {
		t.Errorf("Process = %q with validation off", got)
	}
}

func TestProcessorNilLLM(t *testing.T) {
	p := NewProcessor(nil, 0.65, true)
	if got := p.Process(context.Background(), "um hello there", ToneAuto); got != "Hello there." {
		t.Errorf("Process = %q", got)
	}
}

func TestProcessorEmptyText(t *testing.T) {
	llm := &FakeLLM{Response: "should not be called"}
	p := NewProcessor(llm, 0.65, true)
	if got := p.Process(context.Background(), "  ", ToneAuto); got != "" {
		t.Errorf("Process = %q for blank input", got)
	}
	if len(llm.Prompts()) != 0 {
		t.Errorf("llm called for blank input")
	}
}

func TestTonePrompts(t *testing.T) {
	llm := &FakeLLM{Response: "ok"}
	p := NewProcessor(llm, 0.65, false)
	p.Process(context.Background(), "keep kubectl get pods as is", ToneTechnical)
	prompts := llm.Prompts()
	if len(prompts) != 1 || !strings.Contains(prompts[0], "technical terms") {
		t.Errorf("technical tone missing from prompt")
	}
}

func TestParseTone(t *testing.T) {
	cases := map[string]Tone{
		"professional": ToneProfessional,
		" Casual ":     ToneCasual,
		"technical":    ToneTechnical,
		"auto":         ToneAuto,
		"bogus":        ToneAuto,
		"":             ToneAuto,
	}
	for in, want := range cases {
		if got := ParseTone(in); got != want {
			t.Errorf("ParseTone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToneForApp(t *testing.T) {
	cases := map[string]Tone{
		"Slack":              ToneCasual,
		"Microsoft Outlook":  ToneProfessional,
		"iTerm2":             ToneTechnical,
		"Visual Studio Code": ToneTechnical,
		"Safari":             ToneCasual,
	}
	for app, want := range cases {
		if got := ToneForApp(app); got != want {
			t.Errorf("ToneForApp(%q) = %q, want %q", app, got, want)
		}
	}
}

func TestOllamaClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %s", ct)
		}
		w.Write([]byte(`{"response": "Fixed text.", "done": true}`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "llama3.2", 0.0)
	got, err := c.Generate(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Fixed text." {
		t.Errorf("response = %q", got)
	}
}

func TestOllamaClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`model not found`))
	}))
	defer srv.Close()

	c := NewOllamaClient(srv.URL, "missing", 0.0)
	if _, err := c.Generate(context.Background(), "prompt"); err == nil {
		t.Errorf("no error for 404")
	}

	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "out of memory"}`))
	}))
	defer srv2.Close()

	c2 := NewOllamaClient(srv2.URL, "llama3.2", 0.0)
	if _, err := c2.Generate(context.Background(), "prompt"); err == nil {
		t.Errorf("no error for error payload")
	}
}
