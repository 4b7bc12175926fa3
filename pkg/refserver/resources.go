package refserver

import (
	"fmt"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

// The resource surface is deliberately tiny: one readable document, so
// capability advertisement is honest and resources/read has something
// real to return.
const resourceServerInfo = "mcpconform://server/info"

func (s *Server) resourceDescriptors() []protocol.Resource {
	return []protocol.Resource{
		{
			URI:         resourceServerInfo,
			Name:        "server-info",
			Description: "Server identity and the protocol revisions it speaks.",
			MimeType:    defaults.ContentTypeJSON,
		},
	}
}

func (s *Server) handleResourcesList(msg *protocol.Message) *protocol.Response {
	return resultResponse(msg.ID, protocol.ListResourcesResult{
		Resources: s.resourceDescriptors(),
	})
}

func (s *Server) handleResourcesRead(msg *protocol.Message) *protocol.Response {
	var params protocol.ReadResourceParams
	if len(msg.Params) > 0 {
		if err := jsonutil.Unmarshal(msg.Params, &params); err != nil {
			return errResponse(msg.ID, protocol.CodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}
	if params.URI != resourceServerInfo {
		return errResponse(msg.ID, protocol.CodeResourceNotFound, fmt.Sprintf("resource not found: %q", params.URI))
	}

	doc, err := jsonutil.Marshal(map[string]any{
		"name":      s.cfg.Name,
		"version":   s.cfg.Version,
		"revisions": adapter.Revisions(),
	})
	if err != nil {
		return errResponse(msg.ID, protocol.CodeInternalError, "encode resource")
	}

	return resultResponse(msg.ID, protocol.ReadResourceResult{
		Contents: []protocol.ResourceContents{
			{
				URI:      resourceServerInfo,
				MimeType: defaults.ContentTypeJSON,
				Text:     string(doc),
			},
		},
	})
}
