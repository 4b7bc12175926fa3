package refserver

import (
	"fmt"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

const promptToolBrief = "tool-brief"

func (s *Server) promptDescriptors() []protocol.Prompt {
	return []protocol.Prompt{
		{
			Name:        promptToolBrief,
			Description: "One-paragraph usage brief for a named tool.",
			Arguments: []protocol.PromptArgument{
				{Name: "tool", Description: "Tool name to describe.", Required: true},
			},
		},
	}
}

func (s *Server) handlePromptsList(msg *protocol.Message) *protocol.Response {
	return resultResponse(msg.ID, protocol.ListPromptsResult{
		Prompts: s.promptDescriptors(),
	})
}

func (s *Server) handlePromptsGet(msg *protocol.Message) *protocol.Response {
	var params protocol.GetPromptParams
	if len(msg.Params) > 0 {
		if err := jsonutil.Unmarshal(msg.Params, &params); err != nil {
			return errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.Name != promptToolBrief {
		return errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("unknown prompt: %q", params.Name))
	}

	toolName := params.Arguments["tool"]
	if toolName == "" {
		return errResponse(msg.ID, protocol.CodeInvalidParams, "prompt argument required: tool")
	}
	tool, ok := s.registry.Get(toolName)
	if !ok {
		return errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("unknown tool: %q", toolName))
	}

	text := fmt.Sprintf("Explain when to call the %q tool. Its declared purpose: %s",
		tool.Descriptor.Name, tool.Descriptor.Description)
	return resultResponse(msg.ID, protocol.GetPromptResult{
		Description: "Usage brief for " + tool.Descriptor.Name,
		Messages: []protocol.PromptMessage{
			{Role: "user", Content: protocol.TextContent(text)},
		},
	})
}
