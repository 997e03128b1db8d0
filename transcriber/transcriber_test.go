package transcriber

import (
	"context"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sotto/encoder"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestNewEncoder(t *testing.T) {
	enc, err := newEncoder("flac")
	if err != nil {
		t.Fatalf("newEncoder(flac): %v", err)
	}
	if enc == nil {
		t.Fatal("newEncoder(flac) returned nil")
	}
	if _, err := newEncoder("ogg"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func feedSamples(t *testing.T, s Session, n int) {
	t.Helper()
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(i%1000))
	}
	s.Feed(pcm)
}

func TestBatchSessionFeedAndClose(t *testing.T) {
	fakeFn := func(audio []byte, format string) (*Result, error) {
		if format != "flac" {
			t.Errorf("format = %q, want flac", format)
		}
		if len(audio) == 0 {
			t.Error("no encoded audio uploaded")
		}
		return &Result{
			Text:    "hello world",
			Metrics: &NetworkMetrics{TTFB: 10 * time.Millisecond},
		}, nil
	}

	bs, err := newBatchSession(SessionConfig{Format: "flac"}, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}

	// Drain updates — channel closed by Close()
	go func() {
		for range bs.Updates() {
		}
	}()

	feedSamples(t, bs, encoder.BlockSize+encoder.BlockSize/2)

	result, err := bs.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.Text != "hello world" {
		t.Errorf("Text = %q, want %q", result.Text, "hello world")
	}
	if !result.HasText {
		t.Error("HasText should be true")
	}
	if result.Batch == nil {
		t.Fatal("Batch should be non-nil")
	}
	if result.Batch.AudioLengthS <= 0 {
		t.Error("AudioLengthS should be positive")
	}
}

func TestBatchSessionNoSpeech(t *testing.T) {
	fakeFn := func(audio []byte, format string) (*Result, error) {
		return &Result{Text: "  ", Metrics: &NetworkMetrics{}}, nil
	}
	bs, err := newBatchSession(SessionConfig{Format: "flac"}, fakeFn)
	if err != nil {
		t.Fatalf("newBatchSession: %v", err)
	}
	go func() {
		for range bs.Updates() {
		}
	}()
	feedSamples(t, bs, encoder.BlockSize)

	result, err := bs.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !result.NoSpeech || result.HasText {
		t.Errorf("blank transcript: NoSpeech=%v HasText=%v", result.NoSpeech, result.HasText)
	}
}

func TestWhisperSessionAgainstLocalServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return // connection warm-up
		}
		if err := r.ParseMultipartForm(16 << 20); err != nil {
			t.Errorf("multipart parse: %v", err)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file part: %v", err)
		}
		if got := r.FormValue("response_format"); got != "verbose_json" {
			t.Errorf("response_format = %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language = %q", got)
		}
		w.Write([]byte(`{
			"text": "local transcription works",
			"duration": 1.5,
			"segments": [
				{"text": "local transcription works", "start": 0, "end": 1.5,
				 "no_speech_prob": 0.01, "avg_logprob": -0.2}
			]
		}`))
	}))
	defer srv.Close()

	wt := NewWhisper(srv.URL)
	session, err := wt.NewSession(context.Background(), SessionConfig{Format: "flac", Language: "en"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	go func() {
		for range session.Updates() {
		}
	}()
	feedSamples(t, session, encoder.BlockSize)

	result, err := session.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.Text != "local transcription works" {
		t.Errorf("Text = %q", result.Text)
	}
	if result.Batch == nil || result.Batch.Confidence <= 0 {
		t.Errorf("confidence not derived: %+v", result.Batch)
	}
}

func TestWhisperServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("model not loaded"))
	}))
	defer srv.Close()

	wt := NewWhisper(srv.URL)
	session, err := wt.NewSession(context.Background(), SessionConfig{Format: "flac"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	go func() {
		for range session.Updates() {
		}
	}()
	feedSamples(t, session, encoder.BlockSize)

	if _, err := session.Close(); err == nil {
		t.Error("expected error from failing server")
	}
}

func TestConfidenceFromLogProb(t *testing.T) {
	cases := []struct {
		logProb  float64
		segments int
		want     float64
	}{
		{0, 1, 1},
		{-0.25, 2, 0.75},
		{-5, 1, 0},
		{-0.1, 0, 0},
	}
	for _, tc := range cases {
		if got := confidenceFromLogProb(tc.logProb, tc.segments); got != tc.want {
			t.Errorf("confidenceFromLogProb(%v, %d) = %v, want %v", tc.logProb, tc.segments, got, tc.want)
		}
	}
}

func TestFakeTranscriber(t *testing.T) {
	f := NewFake("canned text", nil)
	session, err := f.NewSession(context.Background(), SessionConfig{Format: "flac"})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	session.Feed([]byte{0, 0})
	result, err := session.Close()
	if err != nil {
		t.Fatalf("Close: %v", err)
	}
	if result.Text != "canned text" || !result.HasText {
		t.Errorf("result = %+v", result)
	}
}
