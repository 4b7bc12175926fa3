// Package tools holds the reference server's built-in tool registry.
// The set is deliberately small and predictable: each tool exists to
// exercise one corner of the tools surface (plain calls, structured
// output, long-running work, sandboxed file access, tool-level failure).
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

// Handler executes one tool call. A *protocol.Error return becomes a
// JSON-RPC error response; tool-level failures are expressed through
// CallToolResult.IsError instead.
type Handler func(ctx context.Context, args jsontext.Value) (*protocol.CallToolResult, *protocol.Error)

// Tool pairs a wire descriptor with its handler.
type Tool struct {
	Descriptor protocol.Tool
	Handler    Handler
}

// Registry is a concurrent-safe, ordered tool collection.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]*Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(t Tool) error {
	if t.Descriptor.Name == "" {
		return fmt.Errorf("tools: descriptor needs a name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: %q needs a handler", t.Descriptor.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Descriptor.Name]; exists {
		return fmt.Errorf("tools: %q already registered", t.Descriptor.Name)
	}
	tool := t
	r.tools[t.Descriptor.Name] = &tool
	r.order = append(r.order, t.Descriptor.Name)
	return nil
}

// Get returns the named tool.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns descriptors in registration order.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].Descriptor)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ---------------------------------------------------------------------------
// Built-in set
// ---------------------------------------------------------------------------

// Builtin returns the standard registry served by the reference server.
// The file tools share one sandbox per registry.
func Builtin() *Registry {
	r := NewRegistry()
	box := &sandbox{}
	for _, t := range []Tool{echoTool(), addTool(), sleepTool(), readFileTool(box), writeFileTool(box), failTool()} {
		if err := r.Register(t); err != nil {
			// The built-in set is static; a clash here is a programming
			// error, not a runtime condition.
			panic(err)
		}
	}
	return r
}

// --- echo ---

func echoTool() Tool {
	return Tool{
		Descriptor: protocol.Tool{
			Name:        "echo",
			Description: "Echo the message argument back unchanged.",
			InputSchema: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "Text to echo back.",
					},
				},
				"required": []string{"message"},
			}),
			Annotations: &protocol.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
			},
		},
		Handler: func(_ context.Context, args jsontext.Value) (*protocol.CallToolResult, *protocol.Error) {
			var in struct {
				Message *string `json:"message"`
			}
			if err := parseArgs(args, &in); err != nil {
				return nil, err
			}
			if in.Message == nil {
				return nil, protocol.NewError(protocol.CodeInvalidParams, "echo: message is required")
			}
			return &protocol.CallToolResult{
				Content: []protocol.Content{protocol.TextContent(*in.Message)},
			}, nil
		},
	}
}

// --- add ---

func addTool() Tool {
	return Tool{
		Descriptor: protocol.Tool{
			Name:        "add",
			Description: "Add two numbers and return the sum.",
			InputSchema: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"a": map[string]any{"type": "number"},
					"b": map[string]any{"type": "number"},
				},
				"required": []string{"a", "b"},
			}),
			OutputSchema: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sum": map[string]any{"type": "number"},
				},
				"required": []string{"sum"},
			}),
			Annotations: &protocol.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
			},
		},
		Handler: func(_ context.Context, args jsontext.Value) (*protocol.CallToolResult, *protocol.Error) {
			var in struct {
				A *float64 `json:"a"`
				B *float64 `json:"b"`
			}
			if err := parseArgs(args, &in); err != nil {
				return nil, err
			}
			if in.A == nil || in.B == nil {
				return nil, protocol.NewError(protocol.CodeInvalidParams, "add: both a and b are required")
			}
			sum := *in.A + *in.B
			structured, err := jsonutil.Marshal(map[string]float64{"sum": sum})
			if err != nil {
				return nil, protocol.NewError(protocol.CodeInternalError, "add: encode result")
			}
			return &protocol.CallToolResult{
				Content:           []protocol.Content{protocol.TextContent(fmt.Sprintf("%g + %g = %g", *in.A, *in.B, sum))},
				StructuredContent: jsontext.Value(structured),
			}, nil
		},
	}
}

// --- sleep ---

func sleepTool() Tool {
	return Tool{
		Descriptor: protocol.Tool{
			Name:        "sleep",
			Description: "Sleep for the given number of milliseconds, then report how long was slept. Honors cancellation.",
			InputSchema: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ms": map[string]any{
						"type":        "integer",
						"description": "Milliseconds to sleep.",
						"minimum":     0,
					},
				},
				"required": []string{"ms"},
			}),
		},
		Handler: func(ctx context.Context, args jsontext.Value) (*protocol.CallToolResult, *protocol.Error) {
			var in struct {
				MS *int64 `json:"ms"`
			}
			if err := parseArgs(args, &in); err != nil {
				return nil, err
			}
			if in.MS == nil || *in.MS < 0 {
				return nil, protocol.NewError(protocol.CodeInvalidParams, "sleep: ms must be a non-negative integer")
			}
			d := time.Duration(*in.MS) * time.Millisecond
			if d > duration.ContextMedium {
				return nil, protocol.NewError(protocol.CodeInvalidParams, fmt.Sprintf("sleep: ms capped at %d", duration.ContextMedium.Milliseconds()))
			}

			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				return &protocol.CallToolResult{
					Content: []protocol.Content{protocol.TextContent(fmt.Sprintf("slept %dms", *in.MS))},
				}, nil
			case <-ctx.Done():
				return nil, protocol.NewError(protocol.CodeInternalError, "sleep: interrupted")
			}
		},
	}
}

// --- read_file / write_file ---

// maxFileBytes bounds both reads and writes through the file tools.
const maxFileBytes = 1 << 20

// sandbox confines the file tools to one throwaway directory. The
// directory is created on first use, so registries that never see a
// file call stay off the filesystem.
type sandbox struct {
	once sync.Once
	dir  string
	err  error
}

func (s *sandbox) root() (string, error) {
	s.once.Do(func() {
		s.dir, s.err = os.MkdirTemp("", "mcpconform-tools-")
	})
	return s.dir, s.err
}

// resolve maps a caller path to its location under the sandbox root.
// Absolute paths and anything that climbs out through ".." are rejected.
func (s *sandbox) resolve(name string) (string, *protocol.Error) {
	if name == "" {
		return "", protocol.NewError(protocol.CodeInvalidParams, "path is required")
	}
	if !filepath.IsLocal(name) {
		return "", protocol.NewError(protocol.CodeInvalidParams, fmt.Sprintf("path %q must stay inside the tool workspace", name))
	}
	root, err := s.root()
	if err != nil {
		return "", protocol.NewError(protocol.CodeInternalError, fmt.Sprintf("tool workspace unavailable: %v", err))
	}
	return filepath.Join(root, name), nil
}

func readFileTool(box *sandbox) Tool {
	return Tool{
		Descriptor: protocol.Tool{
			Name:        "read_file",
			Description: "Read a file from the tool workspace and return its contents as text.",
			InputSchema: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Workspace-relative path of the file to read.",
					},
				},
				"required": []string{"path"},
			}),
			Annotations: &protocol.ToolAnnotations{
				ReadOnlyHint:   true,
				IdempotentHint: true,
			},
		},
		Handler: func(_ context.Context, args jsontext.Value) (*protocol.CallToolResult, *protocol.Error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := parseArgs(args, &in); err != nil {
				return nil, err
			}
			target, perr := box.resolve(in.Path)
			if perr != nil {
				return nil, perr
			}
			info, err := os.Stat(target)
			if err != nil {
				return &protocol.CallToolResult{
					IsError: true,
					Content: []protocol.Content{protocol.TextContent(fmt.Sprintf("read_file: %s: no such file", in.Path))},
				}, nil
			}
			if info.Size() > maxFileBytes {
				return &protocol.CallToolResult{
					IsError: true,
					Content: []protocol.Content{protocol.TextContent(fmt.Sprintf("read_file: %s exceeds the %d byte limit", in.Path, maxFileBytes))},
				}, nil
			}
			data, err := os.ReadFile(target)
			if err != nil {
				return &protocol.CallToolResult{
					IsError: true,
					Content: []protocol.Content{protocol.TextContent(fmt.Sprintf("read_file: %s: %v", in.Path, err))},
				}, nil
			}
			return &protocol.CallToolResult{
				Content: []protocol.Content{protocol.TextContent(string(data))},
			}, nil
		},
	}
}

func writeFileTool(box *sandbox) Tool {
	return Tool{
		Descriptor: protocol.Tool{
			Name:        "write_file",
			Description: "Write text content to a file in the tool workspace, creating parent directories as needed.",
			InputSchema: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Workspace-relative path of the file to write.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Text to store in the file.",
					},
				},
				"required": []string{"path", "content"},
			}),
			Annotations: &protocol.ToolAnnotations{
				IdempotentHint: true,
			},
		},
		Handler: func(_ context.Context, args jsontext.Value) (*protocol.CallToolResult, *protocol.Error) {
			var in struct {
				Path    string  `json:"path"`
				Content *string `json:"content"`
			}
			if err := parseArgs(args, &in); err != nil {
				return nil, err
			}
			if in.Content == nil {
				return nil, protocol.NewError(protocol.CodeInvalidParams, "write_file: content is required")
			}
			if len(*in.Content) > maxFileBytes {
				return nil, protocol.NewError(protocol.CodeInvalidParams, fmt.Sprintf("write_file: content exceeds the %d byte limit", maxFileBytes))
			}
			target, perr := box.resolve(in.Path)
			if perr != nil {
				return nil, perr
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return &protocol.CallToolResult{
					IsError: true,
					Content: []protocol.Content{protocol.TextContent(fmt.Sprintf("write_file: %s: %v", in.Path, err))},
				}, nil
			}
			if err := os.WriteFile(target, []byte(*in.Content), 0o644); err != nil {
				return &protocol.CallToolResult{
					IsError: true,
					Content: []protocol.Content{protocol.TextContent(fmt.Sprintf("write_file: %s: %v", in.Path, err))},
				}, nil
			}
			return &protocol.CallToolResult{
				Content: []protocol.Content{protocol.TextContent(fmt.Sprintf("wrote %d bytes to %s", len(*in.Content), in.Path))},
			}, nil
		},
	}
}

// --- fail ---

func failTool() Tool {
	return Tool{
		Descriptor: protocol.Tool{
			Name:        "fail",
			Description: "Always return a tool-level error result. Exists so clients can verify isError handling.",
			InputSchema: mustSchema(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "Failure text to include in the result.",
					},
				},
			}),
		},
		Handler: func(_ context.Context, args jsontext.Value) (*protocol.CallToolResult, *protocol.Error) {
			var in struct {
				Message string `json:"message"`
			}
			if err := parseArgs(args, &in); err != nil {
				return nil, err
			}
			if in.Message == "" {
				in.Message = "deliberate failure"
			}
			return &protocol.CallToolResult{
				IsError: true,
				Content: []protocol.Content{protocol.TextContent(in.Message)},
			}, nil
		},
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// parseArgs decodes the raw arguments object. A missing arguments field
// decodes as all-zero, matching peers that omit "arguments" entirely.
func parseArgs(args jsontext.Value, into any) *protocol.Error {
	if len(args) == 0 {
		return nil
	}
	if err := jsonutil.Unmarshal(args, into); err != nil {
		return protocol.NewError(protocol.CodeInvalidParams, fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func mustSchema(schema map[string]any) jsontext.Value {
	raw, err := jsonutil.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tools: static schema failed to encode: %v", err))
	}
	return jsontext.Value(raw)
}
