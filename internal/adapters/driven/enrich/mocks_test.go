package enrich

import (
	"context"
	"sync"
)

// stubAnalyzer returns text or err and counts calls. It serves as both an
// image and a document analyzer.
type stubAnalyzer struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (s *stubAnalyzer) analyze() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.text, s.err
}

func (s *stubAnalyzer) AnalyzeImage(_ context.Context, _ string) (string, error) {
	return s.analyze()
}

func (s *stubAnalyzer) AnalyzeDocument(_ context.Context, _ string) (string, error) {
	return s.analyze()
}

func (s *stubAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
