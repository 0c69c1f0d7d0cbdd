// Package transport carries JSON-RPC messages between an MCP client and the
// request processor over newline-delimited stdin/stdout.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/Trust-Square/luma-mcp-server/internal/jsonrpc"
	"github.com/Trust-Square/luma-mcp-server/internal/observability"
)

// RequestProcessor processes JSON-RPC requests.
// Implemented by the MCP handler.
type RequestProcessor interface {
	ProcessRequest(ctx context.Context, req *jsonrpc.Request) (interface{}, *jsonrpc.Error)
}

// Stdio serves one client over a pair of streams. Requests are processed
// one at a time in arrival order.
type Stdio struct {
	processor RequestProcessor
	in        io.Reader
	out       io.Writer
	mu        sync.Mutex
}

func NewStdio(processor RequestProcessor, in io.Reader, out io.Writer) *Stdio {
	return &Stdio{
		processor: processor,
		in:        in,
		out:       out,
	}
}

type line struct {
	data []byte
	err  error
}

// Serve reads messages until the input ends or ctx is cancelled. A clean
// end of input returns nil.
func (s *Stdio) Serve(ctx context.Context) error {
	lines := make(chan line)
	go s.read(ctx, lines)

	for {
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			if l.err != nil {
				return errors.Wrap(l.err, "reading input")
			}
			s.handle(ctx, l.data)
		}
	}
}

func (s *Stdio) read(ctx context.Context, lines chan<- line) {
	defer close(lines)
	r := bufio.NewReaderSize(s.in, 1<<20)
	for {
		data, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(data)) > 0 {
			select {
			case lines <- line{data: data}:
			case <-ctx.Done():
				return
			}
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			select {
			case lines <- line{err: err}:
			case <-ctx.Done():
			}
			return
		}
	}
}

func (s *Stdio) handle(ctx context.Context, data []byte) {
	start := time.Now()
	data = bytes.TrimSpace(data)

	if data[0] == '[' {
		s.writeError(nil, &jsonrpc.Error{Code: jsonrpc.InvalidRequest, Message: "Batch requests are not supported"})
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(data, &req); err != nil {
		log.Printf("[transport] parse error: %v", err)
		s.writeError(nil, &jsonrpc.Error{Code: jsonrpc.ParseError, Message: "Parse error"})
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" || req.HasNullID() {
		s.writeError(req.ID, &jsonrpc.Error{Code: jsonrpc.InvalidRequest, Message: "Invalid Request"})
		return
	}

	result, rpcErr := s.process(ctx, &req)

	code := 0
	if rpcErr != nil {
		code = rpcErr.Code
	}
	observability.LogRequest(req.Method, code, time.Since(start).Milliseconds())

	if req.IsNotification() {
		return
	}
	if rpcErr != nil {
		s.writeError(req.ID, rpcErr)
		return
	}
	if result == nil {
		result = struct{}{}
	}
	s.write(jsonrpc.Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// process runs the processor, turning a panic into an InternalError so one
// bad request cannot take the server down.
func (s *Stdio) process(ctx context.Context, req *jsonrpc.Request) (result interface{}, rpcErr *jsonrpc.Error) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("PANIC recovered: %v\n%s", p, debug.Stack())
			observability.LogError("transport: "+req.Method, fmt.Errorf("panic: %v", p))
			result = nil
			rpcErr = &jsonrpc.Error{Code: jsonrpc.InternalError, Message: "An unexpected error occurred"}
		}
	}()
	return s.processor.ProcessRequest(ctx, req)
}

func (s *Stdio) writeError(id json.RawMessage, err *jsonrpc.Error) {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	s.write(jsonrpc.Response{JSONRPC: "2.0", ID: id, Error: err})
}

func (s *Stdio) write(resp jsonrpc.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[transport] encoding response: %v", err)
		data, _ = json.Marshal(jsonrpc.Response{
			JSONRPC: "2.0",
			ID:      resp.ID,
			Error:   &jsonrpc.Error{Code: jsonrpc.InternalError, Message: "Failed to encode response"},
		})
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.out.Write(data); err != nil {
		log.Printf("[transport] writing response: %v", err)
	}
}
