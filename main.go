package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/exec"
	"slices"
	"sort"
	"sync"
	"time"

	"sotto/audio"
	"sotto/beep"
	"sotto/clipboard"
	"sotto/doctor"
	"sotto/encoder"
	"sotto/history"
	"sotto/hotkey"
	"sotto/log"
	"sotto/overlay"
	"sotto/settings"
	"sotto/shutdown"
	"sotto/textproc"
	"sotto/transcriber"
	"sotto/tray"
)

var version = "dev"

var activeTranscriber transcriber.Transcriber
var activeFormat = "flac"
var processor *textproc.Processor
var overlayCtl *overlay.Controller
var prefs *settings.Store
var historyStore *history.Store

// Runtime-togglable options, mutated from tray callbacks.
var optsMu sync.Mutex
var clipboardOnly bool
var useLLM bool
var currentTone textproc.Tone
var maxRecordingTime time.Duration

var transcriptionsMu sync.Mutex
var transcriptions []TranscriptionRecord
var percentileStats PercentileStats
var lastText string

type PercentileStats struct {
	TotalMs  [5]float64 // min, p50, p90, p95, max
	EncodeMs [5]float64
	TLSMs    [5]float64
	CompPct  [5]float64
}

type TranscriptionRecord struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
	MemoryAllocMB    float64
	MemoryPeakMB     float64
}

var deviceSelectChan = make(chan struct{}, 1)
var trayRecordChan = make(chan struct{}, 1)
var trayStopMu sync.Mutex
var trayStopChan chan struct{}

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		transcriptionsMu.Lock()
		n := len(transcriptions)
		transcriptionsMu.Unlock()
		if n > 0 {
			log.SessionEnd(n)
		}
		if overlayCtl != nil {
			overlayCtl.Destroy()
		}
		log.Close()
		tray.Quit()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix + " (ctrl+g)"
}

func modeLineText() string {
	label := activeTranscriber.Name()
	if lang := activeTranscriber.GetLanguage(); lang != "" {
		label += " (" + lang + ")"
	}
	optsMu.Lock()
	llmOn := useLLM
	tone := currentTone
	optsMu.Unlock()
	cleanup := "rules"
	if llmOn {
		cleanup = "llm/" + string(tone)
	}
	return fmt.Sprintf("[%s | %s | %s]", activeFormat, label, cleanup)
}

func run() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, es, fr). Empty = configured value")
	clipboardFlag := flag.Bool("clipboard", false, "Clipboard-only mode: copy the transcript, never simulate a paste")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	hybridFlag := flag.Bool("hybrid", false, "Enable hybrid tap+hold recording mode")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for PTT vs tap (e.g., 350ms)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	// Consumed before flag parsing by the platform mains; declared so Parse
	// accepts it.
	flag.Bool("gui", false, "Run with the floating overlay window (requires the gui build tag)")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	if *logPathFlag != "" {
		openCrashOutput()
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("sotto %s\n", version)
		os.Exit(0)
	}

	settingsPath, err := settings.DefaultPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	prefs, err = settings.Open(settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\nFix or delete %s and retry.\n", err, settingsPath)
		os.Exit(1)
	}
	cfg := prefs.Get()

	if *doctorFlag {
		os.Exit(doctor.Run(cfg.WhisperAPIURL, cfg.OllamaAPIURL))
	}

	optsMu.Lock()
	clipboardOnly = cfg.UseClipboard || *clipboardFlag
	useLLM = cfg.UseLLM
	currentTone = textproc.ParseTone(cfg.TonePreference)
	maxRecordingTime = time.Duration(cfg.MaxRecordingTime * float64(time.Second))
	optsMu.Unlock()

	activeTranscriber = transcriber.New(cfg.WhisperAPIURL)
	lang := cfg.Language
	if *langFlag != "" {
		lang = *langFlag
	}
	activeTranscriber.SetLanguage(lang)

	llm := textproc.NewOllamaClient(cfg.OllamaAPIURL, cfg.LLMModel, cfg.LLMTemperature)
	processor = textproc.NewProcessor(llm, cfg.LLMSimilarityThreshold, cfg.LLMValidationEnabled)

	if path, err := history.DefaultPath(); err == nil {
		historyStore = history.Open(path)
	} else {
		fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
	}

	if !cfg.UseAudioFeedback {
		beep.Disable()
	}

	// Resolve -setup into -device early (before daemonization)
	if *setupFlag && *deviceFlag == "" {
		ctx, err := audio.NewContext()
		if err != nil {
			fmt.Printf("Error initializing audio: %v\n", err)
			os.Exit(1)
		}
		if dev, _ := selectDevice(ctx); dev != nil {
			*deviceFlag = dev.Name
		}
		ctx.Close()
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !*testFlag && os.Getenv("_SOTTO_BG") == "" {
		args := os.Args[1:]
		if *deviceFlag != "" {
			args = append(args, "-device", *deviceFlag)
		}
		exe, _ := os.Executable()
		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "_SOTTO_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Diagnostic logging goes to files; enabled in tray mode where there is
	// no terminal to watch.
	if !*tuiFlag {
		if err := log.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		} else {
			log.SessionStart(activeTranscriber.Name(), "batch", activeFormat)
		}
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: sotto -test <wav-file>")
			os.Exit(1)
		}
		overlayCtl = overlay.New(overlay.NewFakeSurface(), cfg.Overlay())
		runTestMode(args[0])
		return
	}

	if !clipboardOnlyNow() {
		if err := clipboard.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	ctx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer ctx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := ctx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
	} else if *setupFlag {
		selectedDevice, err = selectDevice(ctx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	captureConfig := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}
	captureDevice, err := ctx.NewCapture(selectedDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device init error: %v", err)
		fmt.Printf("Error initializing capture device: %v\n", err)
		os.Exit(1)
	}
	defer captureDevice.Close()

	// Start TUI
	if !*tuiFlag {
		tuiReadyOnce.Do(func() { close(tuiReady) })
	} else {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()

		<-tuiReady
	}

	// The overlay draws into the GUI splash window when built with -tags gui,
	// mirrors into the TUI panel otherwise, and in headless tray mode falls
	// back to the tray tooltip.
	surface := guiSurface
	if surface == nil {
		if *tuiFlag {
			surface = &tuiSurface{}
		} else {
			surface = &traySurface{}
		}
	}
	overlayCtl = overlay.New(surface, cfg.Overlay())

	trayQuit := tray.Run(tray.Config{
		ClipboardMode:      clipboardOnlyNow(),
		UseLLM:             cfg.UseLLM,
		Tone:               cfg.TonePreference,
		Language:           lang,
		OverlayEnabled:     cfg.OverlayEnabled,
		OverlayPosition:    cfg.OverlayPosition,
		OverlayShowTimer:   cfg.OverlayShowTimer,
		OverlayShowPreview: cfg.OverlayShowTextPreview,
	}, tray.Handlers{
		OnRecordStart: func() {
			select {
			case trayRecordChan <- struct{}{}:
			default:
			}
		},
		OnRecordStop: fireTrayStop,
		OnCopyLast: func() {
			transcriptionsMu.Lock()
			text := lastText
			transcriptionsMu.Unlock()
			if text != "" {
				clipboard.Copy(text)
			}
		},
		OnShowLast: func() {
			if !overlayCtl.ShowLastTranscript() {
				log.Info("no_last_transcript")
			}
		},
		OnHistory: func(text string) {
			clipboard.Copy(text)
		},
		OnClipboardMode: func(on bool) {
			optsMu.Lock()
			clipboardOnly = on
			optsMu.Unlock()
			savePref(func(s *settings.Settings) { s.UseClipboard = on })
		},
		OnUseLLM: func(on bool) {
			optsMu.Lock()
			useLLM = on
			optsMu.Unlock()
			savePref(func(s *settings.Settings) { s.UseLLM = on })
			tuiSend(ModeLineMsg{Text: modeLineText()})
		},
		OnTone: func(name string) {
			optsMu.Lock()
			currentTone = textproc.ParseTone(name)
			optsMu.Unlock()
			savePref(func(s *settings.Settings) { s.TonePreference = name })
			tuiSend(ModeLineMsg{Text: modeLineText()})
		},
		OnLanguage: func(code string) {
			activeTranscriber.SetLanguage(code)
			savePref(func(s *settings.Settings) { s.Language = code })
			tuiSend(ModeLineMsg{Text: modeLineText()})
		},
		OnOverlayEnabled: func(on bool) {
			overlayCtl.SetEnabled(on)
			savePref(func(s *settings.Settings) { s.OverlayEnabled = on })
		},
		OnOverlayPosition: func(pos string) {
			overlayCtl.SetPosition(overlay.Position(pos))
			savePref(func(s *settings.Settings) { s.OverlayPosition = pos })
		},
		OnOverlayTimer: func(on bool) {
			overlayCtl.SetShowTimer(on)
			savePref(func(s *settings.Settings) { s.OverlayShowTimer = on })
		},
		OnOverlayPreview: func(on bool) {
			overlayCtl.SetShowTextPreview(on)
			savePref(func(s *settings.Settings) { s.OverlayShowTextPreview = on })
		},
	})

	if historyStore != nil {
		refreshTrayHistory()
	}

	// preferredDevice remembers the user's choice so we can auto-reconnect
	preferredDevice := ""
	if selectedDevice != nil {
		preferredDevice = selectedDevice.Name
	}

	// Poll for device changes (hotplug)
	go func() {
		var last []string
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			devices, err := ctx.Devices()
			if err != nil {
				continue
			}
			names := make([]string, len(devices))
			for i := range devices {
				names[i] = devices[i].Name
			}
			if slices.Equal(last, names) {
				continue
			}
			last = names
			selName := ""
			if selectedDevice != nil {
				selName = selectedDevice.Name
			}
			if selName != "" && !slices.Contains(names, selName) {
				// Selected device disappeared — fall back to default
				log.Info("device_disconnected: " + selName)
				applyDeviceSwitch(ctx, captureConfig, &captureDevice, &selectedDevice, nil)
			} else if selName == "" && preferredDevice != "" && slices.Contains(names, preferredDevice) {
				// Preferred device reappeared — auto-reconnect
				log.Info("device_reconnected: " + preferredDevice)
				switchDeviceByName(ctx, captureConfig, &captureDevice, &selectedDevice, preferredDevice)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-trayQuit:
		}
		gracefulShutdown()
	}()

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	tuiSend(ModeLineMsg{Text: modeLineText()})
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})
	tuiSend(BluetoothWarningMsg{IsBT: selectedDevice != nil && audio.IsBluetooth(selectedDevice.Name)})
	tuiSend(HybridHelpMsg{Enabled: *hybridFlag})

	logRecordDevice := func() {
		log.Info("recording_device: " + captureDevice.DeviceName())
	}

	startRecording := func(stop <-chan struct{}, isToggleFn func() bool) {
		logRecordDevice()
		tuiSend(RecordingStartMsg{})
		tray.SetRecording(true)
		overlayCtl.ShowRecording()
		go beep.PlayStart()

		_, err := handleRecording(captureDevice, stop, isToggleFn)
		tray.SetRecording(false)
		reportRecordingError(err)
	}

	startTrayRecording := func() {
		log.Info("tray_record_start")
		startRecording(mergeStop(newTrayStop()), nil)
	}

	if *hybridFlag {
		hy := hotkey.NewHybrid(hk, *longPressFlag)
		for {
			select {
			case ev := <-hy.Start():
				log.Info("hotkey_start_" + string(ev.Mode))
				startRecording(mergeStop(hy.StopChan(), newTrayStop()), hy.IsToggle)

			case <-trayRecordChan:
				startTrayRecording()

			case <-deviceSelectChan:
				handleDeviceSwitch(ctx, captureConfig, &captureDevice, &selectedDevice)
			}
		}
	} else {
		for {
			select {
			case <-hk.Keydown():
				log.Info("hotkey_down")
				startRecording(mergeStop(hk.Keyup(), newTrayStop()), nil)

			case <-trayRecordChan:
				startTrayRecording()

			case <-deviceSelectChan:
				handleDeviceSwitch(ctx, captureConfig, &captureDevice, &selectedDevice)
			}
		}
	}
}

func savePref(fn func(*settings.Settings)) {
	if err := prefs.Update(fn); err != nil {
		log.Warnf("settings save failed: %v", err)
	}
}

func handleDeviceSwitch(ctx audio.Context, captureConfig audio.CaptureConfig, captureDevice *audio.CaptureDevice, selectedDevice **audio.DeviceInfo) {
	if tuiProgram != nil {
		tuiProgram.ReleaseTerminal()
	}
	newDevice, err := selectDevice(ctx)
	if tuiProgram != nil {
		tuiProgram.RestoreTerminal()
	}

	if err != nil {
		log.Warnf("device selection failed: %v", err)
		return
	}
	if newDevice != nil {
		applyDeviceSwitch(ctx, captureConfig, captureDevice, selectedDevice, newDevice)
	}
}

func switchDeviceByName(ctx audio.Context, captureConfig audio.CaptureConfig, captureDevice *audio.CaptureDevice, selectedDevice **audio.DeviceInfo, name string) {
	devices, err := ctx.Devices()
	if err != nil {
		log.Warnf("device enumeration failed: %v", err)
		return
	}
	for i := range devices {
		if devices[i].Name == name {
			applyDeviceSwitch(ctx, captureConfig, captureDevice, selectedDevice, &devices[i])
			return
		}
	}
	log.Warnf("device not found: %s", name)
}

func applyDeviceSwitch(ctx audio.Context, captureConfig audio.CaptureConfig, captureDevice *audio.CaptureDevice, selectedDevice **audio.DeviceInfo, newDevice *audio.DeviceInfo) {
	name := "system default"
	if newDevice != nil {
		name = newDevice.Name
	}
	log.Info("device_switch: " + name)
	(*captureDevice).Close()
	newCapture, err := ctx.NewCapture(newDevice, captureConfig)
	if err != nil {
		log.Errorf("capture device reinit error: %v", err)
		return
	}
	*captureDevice = newCapture
	*selectedDevice = newDevice
	tuiSend(DeviceLineMsg{Text: deviceLineText(newDevice)})
	tuiSend(BluetoothWarningMsg{IsBT: newDevice != nil && audio.IsBluetooth(newDevice.Name)})
}

func updatePercentileStats() {
	n := len(transcriptions)
	if n == 0 {
		return
	}

	extract := func(fn func(TranscriptionRecord) float64) []float64 {
		vals := make([]float64, n)
		for i, r := range transcriptions {
			vals[i] = fn(r)
		}
		sort.Float64s(vals)
		return vals
	}

	percentile := func(sorted []float64, p float64) float64 {
		idx := int(float64(len(sorted)-1) * p)
		return sorted[idx]
	}

	calcStats := func(sorted []float64) [5]float64 {
		return [5]float64{
			sorted[0],
			percentile(sorted, 0.50),
			percentile(sorted, 0.90),
			percentile(sorted, 0.95),
			sorted[len(sorted)-1],
		}
	}

	percentileStats.TotalMs = calcStats(extract(func(r TranscriptionRecord) float64 { return r.TotalTimeMs }))
	percentileStats.EncodeMs = calcStats(extract(func(r TranscriptionRecord) float64 { return r.EncodeTimeMs }))
	percentileStats.TLSMs = calcStats(extract(func(r TranscriptionRecord) float64 { return r.TLSTimeMs }))
	percentileStats.CompPct = calcStats(extract(func(r TranscriptionRecord) float64 { return r.CompressionPct }))
}
