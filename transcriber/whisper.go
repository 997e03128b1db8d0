package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

// DefaultWhisperURL is the stock whisper.cpp server inference endpoint.
const DefaultWhisperURL = "http://127.0.0.1:8080/inference"

// Whisper talks to a locally running whisper.cpp server. Everything stays on
// the machine; no API key involved.
type Whisper struct {
	baseTranscriber
}

func NewWhisper(apiURL string) *Whisper {
	if apiURL == "" {
		apiURL = DefaultWhisperURL
	}
	return &Whisper{
		baseTranscriber: baseTranscriber{
			client: NewTracedClient(),
			apiURL: apiURL,
		},
	}
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) NewSession(_ context.Context, cfg SessionConfig) (Session, error) {
	go w.client.WarmConnection(w.apiURL)
	if cfg.Language != "" {
		w.SetLanguage(cfg.Language)
	}
	return newBatchSession(cfg, w.transcribe)
}

type whisperResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error"`
	Segments []struct {
		Text             string  `json:"text"`
		Start            float64 `json:"start"`
		End              float64 `json:"end"`
		NoSpeechProb     float64 `json:"no_speech_prob"`
		AvgLogProb       float64 `json:"avg_logprob"`
		CompressionRatio float64 `json:"compression_ratio"`
		Temperature      float64 `json:"temperature"`
	} `json:"segments"`
}

func (w *Whisper) transcribe(audioData []byte, format string) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}

	writer.WriteField("response_format", "verbose_json")
	writer.WriteField("temperature", "0.0")
	if w.lang != "" {
		writer.WriteField("language", w.lang)
	}
	writer.Close()

	req, err := http.NewRequest("POST", w.apiURL, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper server unreachable at %s: %w", w.apiURL, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("whisper server error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var wResp whisperResponse
	if err := json.Unmarshal(resp.Body, &wResp); err != nil {
		return nil, fmt.Errorf("whisper response parse error: %w", err)
	}
	if wResp.Error != "" {
		return nil, fmt.Errorf("whisper server error: %s", wResp.Error)
	}

	var noSpeechProb, avgLogProb float64
	var segments []Segment
	if len(wResp.Segments) > 0 {
		var logProbSum float64
		for _, seg := range wResp.Segments {
			if seg.NoSpeechProb > noSpeechProb {
				noSpeechProb = seg.NoSpeechProb
			}
			logProbSum += seg.AvgLogProb
			segments = append(segments, Segment{
				Text:             seg.Text,
				NoSpeechProb:     seg.NoSpeechProb,
				AvgLogProb:       seg.AvgLogProb,
				CompressionRatio: seg.CompressionRatio,
				Temperature:      seg.Temperature,
				Start:            seg.Start,
				End:              seg.End,
			})
		}
		avgLogProb = logProbSum / float64(len(wResp.Segments))
	}

	return &Result{
		Text:         wResp.Text,
		Metrics:      resp.Metrics,
		Confidence:   confidenceFromLogProb(avgLogProb, len(wResp.Segments)),
		NoSpeechProb: noSpeechProb,
		AvgLogProb:   avgLogProb,
		Duration:     wResp.Duration,
		Segments:     segments,
	}, nil
}

// confidenceFromLogProb maps the mean segment log-probability onto (0, 1].
// The server does not report a confidence figure directly.
func confidenceFromLogProb(avgLogProb float64, segments int) float64 {
	if segments == 0 {
		return 0
	}
	if avgLogProb >= 0 {
		return 1
	}
	if avgLogProb < -1 {
		avgLogProb = -1
	}
	return 1 + avgLogProb
}
