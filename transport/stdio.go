package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/felixgeelhaar/jsonrpc-go/middleware"
	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// DefaultMaxLineBytes bounds a single stdio message.
const DefaultMaxLineBytes = 1 * middleware.MB

// Stdio implements JSON-RPC over newline-delimited stdin/stdout. Each
// line holds one JSON text, single or batch, and each reply is one line.
type Stdio struct {
	in           io.Reader
	out          io.Writer
	maxLineBytes int
	logger       middleware.Logger

	mu sync.Mutex
}

// StdioOption configures a Stdio transport.
type StdioOption func(*Stdio)

// WithStdin sets a custom stdin reader.
func WithStdin(r io.Reader) StdioOption {
	return func(s *Stdio) {
		s.in = r
	}
}

// WithStdout sets a custom stdout writer.
func WithStdout(w io.Writer) StdioOption {
	return func(s *Stdio) {
		s.out = w
	}
}

// WithMaxLineBytes sets the longest line accepted.
func WithMaxLineBytes(n int) StdioOption {
	return func(s *Stdio) {
		if n > 0 {
			s.maxLineBytes = n
		}
	}
}

// WithStdioLogger sets the logger for transport-level events.
func WithStdioLogger(l middleware.Logger) StdioOption {
	return func(s *Stdio) {
		s.logger = l
	}
}

// NewStdio creates a new stdio transport.
func NewStdio(opts ...StdioOption) *Stdio {
	s := &Stdio{
		in:           os.Stdin,
		out:          os.Stdout,
		maxLineBytes: DefaultMaxLineBytes,
		logger:       middleware.NopLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Addr returns the transport address.
func (s *Stdio) Addr() string {
	return "stdio"
}

// Serve reads messages until EOF or ctx is canceled.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), s.maxLineBytes)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := bytes.Clone(scanner.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			scanErr <- err
		}
	}()

	ctx = protocol.SetRequestMeta(ctx, protocol.MetaTransport, "stdio")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if errors.Is(err, bufio.ErrTooLong) {
						return fmt.Errorf("stdio: line exceeds %d bytes: %w", s.maxLineBytes, err)
					}
					return err
				default:
					return nil
				}
			}
			if err := s.handleLine(ctx, handler, line); err != nil {
				return err
			}
		}
	}
}

func (s *Stdio) handleLine(ctx context.Context, handler Handler, line []byte) error {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	if !json.Valid(line) {
		s.logger.Debug("parse error", middleware.F("bytes", len(line)))
		return s.writePayload(protocol.ParseErrorPayload(errors.New("line is not valid JSON")))
	}

	payload := handler.HandleMessage(ctx, json.RawMessage(line))
	if payload.NoContent() {
		return nil
	}
	return s.writePayload(payload)
}

func (s *Stdio) writePayload(payload protocol.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encode response", middleware.F("error", err.Error()))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("stdio: write: %w", err)
	}
	return nil
}
