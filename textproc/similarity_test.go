package textproc

import "testing"

func TestSimilarityIdentical(t *testing.T) {
	if got := Similarity("hello world", "hello world"); got < 0.99 {
		t.Errorf("identical similarity = %.2f, want ~1", got)
	}
}

func TestSimilarityCaseInsensitive(t *testing.T) {
	if got := Similarity("Hello World", "hello world"); got < 0.99 {
		t.Errorf("case-only change scored %.2f", got)
	}
}

func TestSimilarityIgnoresFillers(t *testing.T) {
	orig := "um so I think we should uh ship the release"
	clean := "I think we should ship the release"
	if got := Similarity(orig, clean); got < 0.8 {
		t.Errorf("filler removal scored %.2f, want high", got)
	}
}

func TestSimilarityUnrelatedTextLow(t *testing.T) {
	if got := Similarity("schedule a meeting for tuesday", "the quick brown fox jumps"); got > 0.5 {
		t.Errorf("unrelated texts scored %.2f", got)
	}
}

func TestSimilarityEmpty(t *testing.T) {
	if got := Similarity("", "anything"); got != 0 {
		t.Errorf("empty original scored %.2f", got)
	}
}

func TestValidateAcceptsGrammarFix(t *testing.T) {
	orig := "i think we should um ship it tomorrow"
	cand := "I think we should ship it tomorrow."
	ok, score := Validate(orig, cand, 0.65)
	if !ok {
		t.Errorf("grammar fix rejected, score %.2f", score)
	}
}

func TestValidateRejectsHallucination(t *testing.T) {
	orig := "ship it tomorrow"
	cand := "the committee has decided to postpone all deployments indefinitely pending further review"
	if ok, _ := Validate(orig, cand, 0.65); ok {
		t.Errorf("hallucinated rewrite accepted")
	}
}

func TestValidateRejectsLengthDrift(t *testing.T) {
	orig := "please remember to send the quarterly report to the whole team today"
	if ok, _ := Validate(orig, "send report", 0.0); ok {
		t.Errorf("heavy truncation accepted")
	}
	long := orig + " " + orig + " " + orig
	if ok, _ := Validate(orig, long, 0.0); ok {
		t.Errorf("tripled output accepted")
	}
}

func TestValidateEmptyCandidate(t *testing.T) {
	if ok, _ := Validate("some text", "   ", 0.0); ok {
		t.Errorf("blank candidate accepted")
	}
}
