package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// startupLog prints step-by-step serve progress, with an animated spinner
// when writing to a terminal.
type startupLog struct {
	w     io.Writer
	isTTY bool
	mu    sync.Mutex
}

func newStartupLog(w io.Writer, isTTY bool) *startupLog {
	return &startupLog{w: w, isTTY: isTTY}
}

// Step prints a completed step with a checkmark.
func (s *startupLog) Step(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "✓ %s\n", fmt.Sprintf(format, args...))
}

// StartSpinner shows msg until the returned stop func is called. stop prints
// a checkmark, or a cross with the error when err is non-nil; only the first
// call has any effect. In non-TTY mode the line is printed statically.
func (s *startupLog) StartSpinner(msg string) func(err error) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if s.isTTY {
		frames := []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(80 * time.Millisecond)
			defer ticker.Stop()
			for i := 0; ; i = (i + 1) % len(frames) {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.mu.Lock()
					fmt.Fprintf(s.w, "\r%c %s", frames[i], msg)
					s.mu.Unlock()
				}
			}
		}()
	} else {
		s.mu.Lock()
		fmt.Fprintf(s.w, "%s\n", msg)
		s.mu.Unlock()
	}

	prefix := ""
	if s.isTTY {
		prefix = "\r"
	}
	var once sync.Once
	return func(err error) {
		once.Do(func() {
			cancel()
			wg.Wait()
			s.mu.Lock()
			defer s.mu.Unlock()
			if err != nil {
				fmt.Fprintf(s.w, "%s✗ %s: %v\n", prefix, msg, err)
				return
			}
			fmt.Fprintf(s.w, "%s✓ %s\n", prefix, msg)
		})
	}
}
