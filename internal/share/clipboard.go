package share

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

// SystemClipboard writes to the operating system clipboard.
type SystemClipboard struct{}

// WriteText implements Clipboard.
func (SystemClipboard) WriteText(_ context.Context, text string) error {
	if clipboard.Unsupported {
		return errors.New("system clipboard is not supported")
	}
	return clipboard.WriteAll(text)
}

// TerminalClipboard asks the terminal emulator to set its clipboard through an OSC 52 escape sequence.
type TerminalClipboard struct {
	Out io.Writer
}

// WriteText implements Clipboard.
func (t TerminalClipboard) WriteText(_ context.Context, text string) error {
	if _, err := fmt.Fprint(t.Out, osc52.New(text)); err != nil {
		return fmt.Errorf("failed to write osc52 sequence: %w", err)
	}
	return nil
}

// Fallback tries each clipboard in order until one succeeds.
type Fallback []Clipboard

// WriteText implements Clipboard.
func (f Fallback) WriteText(ctx context.Context, text string) error {
	var errs []error
	for _, c := range f {
		err := c.WriteText(ctx, text)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return errors.New("no clipboard configured")
	}
	return errors.Join(errs...)
}

// TerminalDefault is the clipboard used by the terminal client: the system clipboard, then OSC 52 on out.
func TerminalDefault(out io.Writer) Clipboard {
	return Fallback{SystemClipboard{}, TerminalClipboard{Out: out}}
}
