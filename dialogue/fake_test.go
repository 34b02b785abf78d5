package dialogue

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/genai"
)

var errModelDown = errors.New("model unavailable")

// fakeGenerator answers classification requests (schema set) and free-text
// requests separately and records every prompt it sees. A hanging generator
// answers nothing until ctx is done.
type fakeGenerator struct {
	mu       sync.Mutex
	classify func(prompt string) (string, error)
	compose  func(prompt string) (string, error)
	hang     bool
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}

	fn := f.compose
	if schema != nil {
		fn = f.classify
	}
	if fn == nil {
		return "", errModelDown
	}
	return fn(prompt)
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func replyWith(text string) func(string) (string, error) {
	return func(string) (string, error) { return text, nil }
}

func failWith(err error) func(string) (string, error) {
	return func(string) (string, error) { return "", err }
}
