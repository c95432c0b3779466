package transport

import (
	"assettree/internal/core/config"
	"assettree/internal/mcp/contracts"
	"assettree/internal/shared/util"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
)

// Stdio serves newline-delimited JSON messages over a reader/writer pair,
// stdin/stdout by default. Requests are handled one at a time.
type Stdio struct {
	in      io.Reader
	out     io.Writer
	info    ServerInfo
	cfg     config.RateLimit
	limiter *util.Limiter

	mu      sync.Mutex
	running bool
}

func NewStdio(info ServerInfo, cfg config.RateLimit) (Adapter, error) {
	return NewStdioIO(os.Stdin, os.Stdout, info, cfg), nil
}

func NewStdioIO(in io.Reader, out io.Writer, info ServerInfo, cfg config.RateLimit) *Stdio {
	s := &Stdio{in: in, out: out, info: info, cfg: cfg}
	if cfg.Enabled {
		s.limiter = util.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	}
	return s
}

func (s *Stdio) Start(ctx context.Context, handler Handler) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	s.running = true
	s.mu.Unlock()

	err := s.serve(ctx, handler)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return ctx.Err()
}

func (s *Stdio) Stop() error {
	return nil
}

func (s *Stdio) serve(ctx context.Context, handler Handler) error {
	if handler == nil {
		return contracts.ToolError{Code: contracts.ErrorInvalidArgument, Message: "stdio handler is required"}
	}

	decoder := json.NewDecoder(bufio.NewReader(s.in))
	writer := bufio.NewWriter(s.out)
	encoder := json.NewEncoder(writer)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var raw map[string]any
		if err := decoder.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		var resp any
		if s.limiter != nil && !s.limiter.Allow(1) {
			resp = rateLimitedResponse(raw)
		} else {
			resp = processMessage(ctx, handler, s.info, raw)
		}
		if resp == nil {
			continue
		}
		if err := encoder.Encode(resp); err != nil {
			return err
		}
		if err := writer.Flush(); err != nil {
			return err
		}
	}
}
