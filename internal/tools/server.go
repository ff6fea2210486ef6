package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/fabric-gateway/agent/internal/models"
)

const protocolVersion = "2024-11-05"

// Server speaks the stdio JSON-RPC tool protocol. Responses are the only
// thing written to the output stream; all diagnostics go through logrus to
// stderr.
type Server struct {
	dispatcher *Dispatcher
	in         io.Reader
	out        io.Writer

	name    string
	version string
}

func NewServer(dispatcher *Dispatcher, in io.Reader, out io.Writer) *Server {
	return &Server{
		dispatcher: dispatcher,
		in:         in,
		out:        out,
		name:       "fabric-gateway",
		version:    "1.0",
	}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id,omitempty"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type callParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Run processes requests until the input stream closes.
func (s *Server) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req rpcRequest
		if err := json.Unmarshal(line, &req); err != nil {
			logrus.WithError(err).Debugln("Ignoring unparseable request line")
			continue
		}

		if err := s.handle(ctx, &req); err != nil {
			logrus.WithError(err).Errorln("Failed to handle request")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("input stream failed: %w", err)
	}
	return nil
}

func (s *Server) handle(ctx context.Context, req *rpcRequest) error {
	switch req.Method {
	case "initialize":
		return s.reply(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      map[string]any{"name": s.name, "version": s.version},
		})

	case "tools/list":
		return s.reply(req.ID, map[string]any{"tools": s.dispatcher.Tools()})

	case "tools/call":
		var params callParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return s.replyError(req.ID, -32602, fmt.Sprintf("invalid params: %v", err))
		}

		payload, err := s.dispatcher.Dispatch(ctx, params.Name, params.Arguments)
		if err != nil {
			// Tool failures are tool results, not protocol errors. The
			// typed kind and message travel in the payload.
			payload = map[string]any{
				"error": map[string]any{
					"kind":    models.KindOf(err),
					"message": err.Error(),
				},
			}
		}

		text, err := json.Marshal(payload)
		if err != nil {
			return s.replyError(req.ID, -32603, fmt.Sprintf("failed to encode result: %v", err))
		}

		return s.reply(req.ID, map[string]any{
			"content": []map[string]any{{"type": "text", "text": string(text)}},
		})

	case "notifications/initialized":
		// Client notification, no response expected.
		return nil

	default:
		if req.ID != nil {
			return s.replyError(req.ID, -32601, fmt.Sprintf("Method not found: %s", req.Method))
		}
		return nil
	}
}

func (s *Server) reply(id any, result any) error {
	return s.write(rpcResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) replyError(id any, code int, message string) error {
	return s.write(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}

func (s *Server) write(resp rpcResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	if _, err := s.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	return nil
}
