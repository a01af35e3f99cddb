package collector

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

var ErrOperatorAborted = errors.New("aborted by operator")

// Gate is consulted before every UI action.
type Gate interface {
	Confirm(ctx context.Context, action string) error
}

// AutoGate approves everything.
type AutoGate struct{}

func (AutoGate) Confirm(ctx context.Context, action string) error {
	return ctx.Err()
}

// PromptGate waits for an operator to press Enter before each action.
// Typing q (or closing the input) aborts the run.
type PromptGate struct {
	mu    sync.Mutex
	out   io.Writer
	lines chan string
}

func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	g := &PromptGate{out: out, lines: make(chan string)}
	go g.read(in)
	return g
}

func (g *PromptGate) read(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		g.lines <- scanner.Text()
	}
	close(g.lines)
}

func (g *PromptGate) Confirm(ctx context.Context, action string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	fmt.Fprintf(g.out, "Next: %s. Press Enter to continue or q to abort: ", action)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case line, ok := <-g.lines:
		if !ok {
			return fmt.Errorf("%w: input closed", ErrOperatorAborted)
		}
		if strings.EqualFold(strings.TrimSpace(line), "q") {
			return ErrOperatorAborted
		}
		return nil
	}
}
