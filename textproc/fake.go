package textproc

import (
	"context"
	"sync"
)

// FakeLLM returns canned completions for tests and headless mode.
type FakeLLM struct {
	mu       sync.Mutex
	Response string
	Err      error
	prompts  []string
}

func (f *FakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.Err != nil {
		return "", f.Err
	}
	return f.Response, nil
}

// Prompts returns every prompt received, oldest first.
func (f *FakeLLM) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}
