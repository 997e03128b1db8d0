package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"sotto/audio"
	"sotto/beep"
	"sotto/clipboard"
	"sotto/encoder"
	"sotto/history"
	"sotto/log"
	"sotto/transcriber"
	"sotto/tray"
)

const recordTail = 500 * time.Millisecond

// llmTimeout bounds a single cleanup request; past it we fall back to the
// rule-based pass inside Processor.
const llmTimeout = 30 * time.Second

func newTrayStop() <-chan struct{} {
	trayStopMu.Lock()
	trayStopChan = make(chan struct{})
	ch := trayStopChan
	trayStopMu.Unlock()
	return ch
}

func fireTrayStop() {
	trayStopMu.Lock()
	if trayStopChan != nil {
		select {
		case trayStopChan <- struct{}{}:
		default:
		}
	}
	trayStopMu.Unlock()
}

// mergeStop returns a channel that closes when any source fires.
func mergeStop(sources ...<-chan struct{}) chan struct{} {
	out := make(chan struct{})
	var once sync.Once
	for _, s := range sources {
		if s == nil {
			continue
		}
		go func(ch <-chan struct{}) {
			select {
			case <-ch:
				once.Do(func() { close(out) })
			case <-out:
			}
		}(s)
	}
	return out
}

func reportRecordingError(err error) {
	if err == nil {
		return
	}
	logToTUI("Error recording: %v", err)
	log.Errorf("recording error: %v", err)
	tray.SetError(err.Error())
	overlayCtl.ShowError(err.Error())
}

func handleRecording(capture audio.CaptureDevice, stop <-chan struct{}, isToggleFn func() bool) (<-chan struct{}, error) {
	sess, err := activeTranscriber.NewSession(context.Background(), transcriber.SessionConfig{
		Format:   activeFormat,
		Language: activeTranscriber.GetLanguage(),
	})
	if err != nil {
		return nil, err
	}

	clipCh := make(chan string, 1)
	if !clipboardOnlyNow() {
		go func() {
			prev, _ := clipboard.Read()
			clipCh <- prev
		}()
	}

	updatesDone := make(chan struct{})
	go func() {
		defer close(updatesDone)
		for range sess.Updates() {
		}
	}()

	totalFrames, silenceClose, err := record(capture, stop, sess, isToggleFn)

	if err != nil {
		sess.Close()
		return nil, err
	}
	if totalFrames < uint64(encoder.SampleRate/10) {
		sess.Close()
		overlayCtl.Hide()
		return nil, nil
	}

	recDur := time.Duration(float64(totalFrames) / float64(encoder.SampleRate) * float64(time.Second))
	overlayCtl.ShowTranscribing()
	done := make(chan struct{})
	go func() {
		finishTranscription(sess, clipCh, updatesDone, silenceClose, recDur)
		close(done)
	}()
	return done, nil
}

func finishTranscription(sess transcriber.Session, clipCh chan string, updatesDone <-chan struct{}, skipPaste bool, recDur time.Duration) {
	result, closeErr := sess.Close()
	<-updatesDone

	optsMu.Lock()
	clipOnly := clipboardOnly
	llmOn := useLLM
	tone := currentTone
	optsMu.Unlock()

	var clipPrev string
	if !clipOnly {
		clipPrev = <-clipCh
	}

	if closeErr != nil {
		log.Errorf("transcription error: %v", closeErr)
		logToTUI("Error: %v", closeErr)
		tray.SetError(closeErr.Error())
		overlayCtl.ShowError(closeErr.Error())
		return
	}

	if result.NoSpeech {
		log.Info("no_speech")
		tuiSend(TranscriptionMsg{Text: "(no speech detected)", Metrics: result.Metrics, NoSpeech: true})
		overlayCtl.ShowError("No speech detected")
		recordBatchStats(result)
		return
	}

	finalText := result.Text
	if result.HasText && llmOn && processor != nil {
		overlayCtl.ShowProcessing()
		ctx, cancel := context.WithTimeout(context.Background(), llmTimeout)
		finalText = processor.Process(ctx, result.Text, tone)
		cancel()
	}

	if result.HasText {
		clipboard.Copy(finalText)
		if !clipOnly && !skipPaste {
			clipboard.Paste()
		}
	}

	// Restore the user's previous clipboard after the paste lands. In
	// clipboard-only mode the transcript stays on the clipboard.
	if !clipOnly && !skipPaste && clipPrev != "" {
		go func() {
			time.Sleep(600 * time.Millisecond)
			clipboard.Copy(clipPrev)
		}()
	}

	tuiSend(TranscriptionMsg{Text: finalText, Metrics: result.Metrics, NoSpeech: false})
	overlayCtl.ShowComplete(finalText)
	recordBatchStats(result)

	if result.HasText {
		transcriptionsMu.Lock()
		lastText = finalText
		transcriptionsMu.Unlock()
		log.TranscriptionText(finalText)
		if historyStore != nil {
			if err := historyStore.Add(finalText, ""); err != nil {
				log.Warnf("history save failed: %v", err)
			}
			refreshTrayHistory()
		}
		tray.SetLastRecording(recDur)
	}
}

func recordBatchStats(result transcriber.SessionResult) {
	if result.Batch == nil {
		return
	}
	bs := result.Batch
	rec := TranscriptionRecord{
		AudioLengthS:     bs.AudioLengthS,
		RawSizeKB:        bs.RawSizeKB,
		CompressedSizeKB: bs.CompressedSizeKB,
		CompressionPct:   bs.CompressionPct,
		EncodeTimeMs:     bs.EncodeTimeMs,
		DNSTimeMs:        bs.DNSTimeMs,
		TLSTimeMs:        bs.TLSTimeMs,
		TTFBMs:           bs.TTFBMs,
		TotalTimeMs:      bs.TotalTimeMs,
		MemoryAllocMB:    result.MemoryAllocMB,
		MemoryPeakMB:     result.MemoryPeakMB,
	}
	transcriptionsMu.Lock()
	transcriptions = append(transcriptions, rec)
	updatePercentileStats()
	transcriptionsMu.Unlock()
	log.TranscriptionMetrics(log.Metrics(rec), "batch", activeFormat, activeTranscriber.Name(), bs.ConnReused, bs.TLSProtocol)
	log.Confidence(bs.Confidence)
}

func refreshTrayHistory() {
	entries := historyStore.Recent(5)
	items := make([]tray.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		items = append(items, tray.HistoryEntry{Label: history.FormatPreview(e), Text: e.Text})
	}
	tray.SetHistory(items)
}

func clipboardOnlyNow() bool {
	optsMu.Lock()
	defer optsMu.Unlock()
	return clipboardOnly
}

func record(capture audio.CaptureDevice, stop <-chan struct{}, sess transcriber.Session, isToggleFn func() bool) (uint64, bool, error) {
	vp, err := newVADProcessor()
	if err != nil {
		return 0, false, fmt.Errorf("VAD init: %w", err)
	}

	var bufMu sync.Mutex
	var totalFrames uint64
	var stopped bool
	var autoClosed atomic.Bool
	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	capture.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		if stopped {
			bufMu.Unlock()
			return
		}
		totalFrames += uint64(frameCount)
		bufMu.Unlock()

		if len(data) > 0 {
			pcm := make([]byte, len(data))
			copy(pcm, data)
			sess.Feed(pcm)
		}

		if len(data) > 1 {
			var sumSquares float64
			for i := 0; i+1 < len(data); i += 2 {
				sample := int16(binary.LittleEndian.Uint16(data[i:]))
				normalized := float64(sample) / 32768.0
				sumSquares += normalized * normalized
			}
			rms := math.Sqrt(sumSquares / float64(len(data)/2))
			tuiSend(AudioLevelMsg{Level: rms})
			vp.Process(data)
		}
	})

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		return 0, false, err
	}

	isToggle := func() bool {
		return isToggleFn != nil && isToggleFn()
	}

	optsMu.Lock()
	maxDur := maxRecordingTime
	optsMu.Unlock()

	mon := newSilenceMonitor(isToggle)
	recordStart := time.Now()
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				elapsed := time.Since(recordStart)
				tuiSend(RecordingTickMsg{Duration: elapsed.Seconds()})

				if maxDur > 0 && elapsed >= maxDur {
					log.Info("max_recording_time")
					tuiSend(RecordingStopMsg{})
					tray.SetRecording(false)
					go beep.PlayEnd()
					time.Sleep(recordTail)
					closeDone()
					return
				}

				switch mon.Tick(vp.HasSpeechTick()) {
				case SilenceWarn:
					log.Info("no_voice_warning")
					tuiSend(NoVoiceWarningMsg{})
					tray.SetWarning(true)
					beep.PlayError()
				case SilenceWarnClear:
					tuiSend(VoiceClearedMsg{})
					tray.SetWarning(false)
				case SilenceRepeat:
					log.Info("silence_during_warning")
					tuiSend(NoVoiceWarningMsg{})
					beep.PlayError()
				case SilenceAutoClose:
					log.Info("silence_auto_close")
					tuiSend(SilenceAutoCloseMsg{})
					tray.SetRecording(false)
					go beep.PlayEnd()
					time.Sleep(recordTail)
					autoClosed.Store(true)
					closeDone()
					return
				}
			}
		}
	}()

	go func() {
		select {
		case <-stop:
		case <-done:
			return
		}
		log.Info("recording_stop")
		tuiSend(RecordingStopMsg{})
		tray.SetRecording(false)
		go beep.PlayEnd()
		closeDone()
	}()
	<-done

	capture.Stop()
	capture.ClearCallback()

	bufMu.Lock()
	stopped = true
	frames := totalFrames
	bufMu.Unlock()

	return frames, autoClosed.Load(), nil
}
