package protocol

import "github.com/go-json-experiment/json/jsontext"

// ---------------------------------------------------------------------------
// Handshake payloads
// ---------------------------------------------------------------------------

// ClientInfo identifies the client in the initialize request.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// ServerInfo identifies the server in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Title   string `json:"title,omitzero"`
}

// ClientCapabilities advertises what the client can do.
type ClientCapabilities struct {
	Experimental map[string]any   `json:"experimental,omitzero"`
	Sampling     map[string]any   `json:"sampling,omitzero"`
	Roots        *RootsCapability `json:"roots,omitzero"`
}

// RootsCapability signals filesystem-roots support.
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitzero"`
}

// ServerCapabilities advertises what the server can do.
type ServerCapabilities struct {
	Experimental map[string]any       `json:"experimental,omitzero"`
	Logging      map[string]any       `json:"logging,omitzero"`
	Prompts      *PromptsCapability   `json:"prompts,omitzero"`
	Resources    *ResourcesCapability `json:"resources,omitzero"`
	Tools        *ToolsCapability     `json:"tools,omitzero"`
}

// PromptsCapability signals prompt support.
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitzero"`
}

// ResourcesCapability signals resource support.
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitzero"`
	ListChanged bool `json:"listChanged,omitzero"`
}

// ToolsCapability signals tool support.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitzero"`
}

// InitializeParams is the initialize request payload.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

// InitializeResult is the initialize response payload.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitzero"`
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

// Tool is a tool descriptor as served by a peer.
type Tool struct {
	Name         string           `json:"name"`
	Description  string           `json:"description,omitzero"`
	InputSchema  jsontext.Value   `json:"inputSchema"`
	OutputSchema jsontext.Value   `json:"outputSchema,omitzero"`
	Annotations  *ToolAnnotations `json:"annotations,omitzero"`
}

// ToolAnnotations are the behavior hints the 2025-03-26 revision added.
type ToolAnnotations struct {
	Title           string `json:"title,omitzero"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitzero"`
	DestructiveHint bool   `json:"destructiveHint,omitzero"`
	IdempotentHint  bool   `json:"idempotentHint,omitzero"`
	OpenWorldHint   bool   `json:"openWorldHint,omitzero"`
}

// ListToolsParams is the tools/list request payload.
type ListToolsParams struct {
	Cursor string `json:"cursor,omitzero"`
}

// ListToolsResult is the tools/list response payload.
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitzero"`
}

// CallToolParams is the tools/call request payload.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments jsontext.Value `json:"arguments,omitzero"`
}

// CallToolResult is the tools/call response payload.
type CallToolResult struct {
	Content           []Content      `json:"content"`
	StructuredContent jsontext.Value `json:"structuredContent,omitzero"`
	IsError           bool           `json:"isError,omitzero"`
}

// Content is one content block in a tool or prompt result.
type Content struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitzero"`
	Data     string `json:"data,omitzero"`
	MimeType string `json:"mimeType,omitzero"`
}

// TextContent builds a text content block.
func TextContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// ---------------------------------------------------------------------------
// Async tool extension (2025-06-18)
// ---------------------------------------------------------------------------

// AsyncCallResult is the tools/call-async response payload: the operation
// handle the caller polls with tools/result.
type AsyncCallResult struct {
	OperationID string `json:"operationId"`
	Status      string `json:"status"`
}

// OperationParams addresses one submitted operation, for tools/result and
// tools/cancel.
type OperationParams struct {
	OperationID string `json:"operationId"`
}

// OperationStatus is the tools/result and tools/cancel response payload.
// Result is only present once the operation completed successfully; Error
// only once it failed.
type OperationStatus struct {
	OperationID string          `json:"operationId"`
	Status      string          `json:"status"`
	Result      *CallToolResult `json:"result,omitzero"`
	Error       *Error          `json:"error,omitzero"`
}

// ---------------------------------------------------------------------------
// Resources and prompts
// ---------------------------------------------------------------------------

// Resource is a resource descriptor.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitzero"`
	Description string `json:"description,omitzero"`
	MimeType    string `json:"mimeType,omitzero"`
}

// ListResourcesResult is the resources/list response payload.
type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor string     `json:"nextCursor,omitzero"`
}

// ReadResourceParams is the resources/read request payload.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// ResourceContents is one entry in a resources/read response.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitzero"`
	Text     string `json:"text,omitzero"`
	Blob     string `json:"blob,omitzero"`
}

// ReadResourceResult is the resources/read response payload.
type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// Prompt is a prompt descriptor.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitzero"`
	Arguments   []PromptArgument `json:"arguments,omitzero"`
}

// PromptArgument describes one prompt argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitzero"`
	Required    bool   `json:"required,omitzero"`
}

// ListPromptsResult is the prompts/list response payload.
type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor string   `json:"nextCursor,omitzero"`
}

// GetPromptParams is the prompts/get request payload.
type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitzero"`
}

// PromptMessage is one message in a prompt result.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// GetPromptResult is the prompts/get response payload.
type GetPromptResult struct {
	Description string          `json:"description,omitzero"`
	Messages    []PromptMessage `json:"messages"`
}
