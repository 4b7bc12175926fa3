package adapter

import (
	"testing"

	"github.com/go-json-experiment/json/jsontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

func TestFor(t *testing.T) {
	for _, v := range Revisions() {
		a, err := For(v)
		require.NoError(t, err, v)
		assert.Equal(t, v, a.Version())
	}

	_, err := For("2023-01-01")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedRevision)
}

func TestLatest(t *testing.T) {
	assert.Equal(t, Rev20250618, Latest())
	assert.True(t, Supported(Latest()))
}

func TestRevisionMatrix(t *testing.T) {
	tests := []struct {
		version       string
		asyncTools    bool
		batch         bool
		versionHeader bool
	}{
		{Rev20241105, false, true, false},
		{Rev20250326, false, true, false},
		{Rev20250618, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			a, err := For(tt.version)
			require.NoError(t, err)
			assert.Equal(t, tt.asyncTools, a.SupportsAsyncTools(), "async tools")
			assert.Equal(t, tt.batch, a.SupportsBatch(), "batch")
			assert.Equal(t, tt.versionHeader, a.RequiresVersionHeader(), "version header")
		})
	}
}

func TestAcceptsInitialized(t *testing.T) {
	oldest, err := For(Rev20241105)
	require.NoError(t, err)
	assert.True(t, oldest.AcceptsInitialized(protocol.NotifInitialized))
	assert.True(t, oldest.AcceptsInitialized(protocol.NotifInitializedLegacy),
		"oldest revision accepts the legacy spelling")

	newest, err := For(Rev20250618)
	require.NoError(t, err)
	assert.True(t, newest.AcceptsInitialized(protocol.NotifInitialized))
	assert.False(t, newest.AcceptsInitialized(protocol.NotifInitializedLegacy))
	assert.False(t, newest.AcceptsInitialized("initialize"))
}

func TestNegotiate(t *testing.T) {
	t.Run("echo accepts", func(t *testing.T) {
		v, err := Negotiate(Rev20250618, Rev20250618)
		require.NoError(t, err)
		assert.Equal(t, Rev20250618, v)
	})

	t.Run("supported answer downgrades", func(t *testing.T) {
		v, err := Negotiate(Rev20250618, Rev20241105)
		require.NoError(t, err)
		assert.Equal(t, Rev20241105, v)
	})

	t.Run("unsupported answer is an error", func(t *testing.T) {
		_, err := Negotiate(Rev20250618, "1999-12-31")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedRevision)
	})
}

func TestBuildInitializeParams(t *testing.T) {
	a, err := For(Rev20250326)
	require.NoError(t, err)

	p := a.BuildInitializeParams(protocol.ClientInfo{Name: "mcpconform", Version: "1.0.0"})
	assert.Equal(t, Rev20250326, p.ProtocolVersion)
	assert.Equal(t, "mcpconform", p.ClientInfo.Name)
}

func TestValidateInitializeResult(t *testing.T) {
	a, err := For(Rev20250618)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		raw := jsontext.Value(`{
			"protocolVersion": "2025-06-18",
			"capabilities": {"tools": {}},
			"serverInfo": {"name": "peer", "version": "0.3.1"}
		}`)
		assert.NoError(t, a.ValidateInitializeResult(raw))
	})

	t.Run("missing serverInfo", func(t *testing.T) {
		raw := jsontext.Value(`{"protocolVersion": "2025-06-18", "capabilities": {}}`)
		err := a.ValidateInitializeResult(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serverInfo")
	})

	t.Run("empty serverInfo name", func(t *testing.T) {
		raw := jsontext.Value(`{
			"protocolVersion": "2025-06-18",
			"capabilities": {},
			"serverInfo": {"name": "", "version": "1"}
		}`)
		err := a.ValidateInitializeResult(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "serverInfo.name")
	})

	t.Run("capabilities must be object", func(t *testing.T) {
		raw := jsontext.Value(`{
			"protocolVersion": "2025-06-18",
			"capabilities": [],
			"serverInfo": {"name": "peer", "version": "1"}
		}`)
		err := a.ValidateInitializeResult(raw)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "capabilities")
	})

	t.Run("multiple violations all cited", func(t *testing.T) {
		err := a.ValidateInitializeResult(jsontext.Value(`{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "protocolVersion")
		assert.Contains(t, err.Error(), "capabilities")
		assert.Contains(t, err.Error(), "serverInfo")
	})

	t.Run("not an object", func(t *testing.T) {
		err := a.ValidateInitializeResult(jsontext.Value(`[1,2]`))
		require.Error(t, err)
	})
}

func TestValidateToolDescriptor(t *testing.T) {
	valid := jsontext.Value(`{
		"name": "echo",
		"description": "Echoes back the message",
		"inputSchema": {"type": "object"}
	}`)

	t.Run("valid on all revisions", func(t *testing.T) {
		for _, v := range Revisions() {
			a, err := For(v)
			require.NoError(t, err)
			assert.NoError(t, a.ValidateToolDescriptor(valid), v)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		a, _ := For(Rev20250618)
		err := a.ValidateToolDescriptor(jsontext.Value(`{"inputSchema": {}}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name")
	})

	t.Run("missing schema", func(t *testing.T) {
		a, _ := For(Rev20250618)
		err := a.ValidateToolDescriptor(jsontext.Value(`{"name": "echo"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inputSchema")
	})

	t.Run("schema must be object", func(t *testing.T) {
		a, _ := For(Rev20250618)
		err := a.ValidateToolDescriptor(jsontext.Value(`{"name": "echo", "inputSchema": "nope"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inputSchema")
	})

	t.Run("annotations rejected before 2025-03-26", func(t *testing.T) {
		withAnnotations := jsontext.Value(`{
			"name": "echo",
			"inputSchema": {"type": "object"},
			"annotations": {"readOnlyHint": true}
		}`)

		a, _ := For(Rev20241105)
		err := a.ValidateToolDescriptor(withAnnotations)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "annotations")

		a, _ = For(Rev20250326)
		assert.NoError(t, a.ValidateToolDescriptor(withAnnotations))
	})

	t.Run("outputSchema only in newest", func(t *testing.T) {
		withOutput := jsontext.Value(`{
			"name": "echo",
			"inputSchema": {"type": "object"},
			"outputSchema": {"type": "object"}
		}`)

		a, _ := For(Rev20250326)
		err := a.ValidateToolDescriptor(withOutput)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outputSchema")

		a, _ = For(Rev20250618)
		assert.NoError(t, a.ValidateToolDescriptor(withOutput))
	})

	t.Run("not an object", func(t *testing.T) {
		a, _ := For(Rev20250618)
		require.Error(t, a.ValidateToolDescriptor(jsontext.Value(`"echo"`)))
	})
}

func TestShapeToolDescriptor(t *testing.T) {
	full := protocol.Tool{
		Name:         "add",
		InputSchema:  jsontext.Value(`{"type":"object"}`),
		OutputSchema: jsontext.Value(`{"type":"object"}`),
		Annotations:  &protocol.ToolAnnotations{ReadOnlyHint: true},
	}

	t.Run("oldest strips annotations and outputSchema", func(t *testing.T) {
		a, _ := For(Rev20241105)
		shaped := a.ShapeToolDescriptor(full)
		assert.Nil(t, shaped.Annotations)
		assert.Empty(t, shaped.OutputSchema)
		assert.Equal(t, full.Name, shaped.Name)
		assert.Equal(t, full.InputSchema, shaped.InputSchema)
	})

	t.Run("middle keeps annotations, strips outputSchema", func(t *testing.T) {
		a, _ := For(Rev20250326)
		shaped := a.ShapeToolDescriptor(full)
		assert.NotNil(t, shaped.Annotations)
		assert.Empty(t, shaped.OutputSchema)
	})

	t.Run("newest keeps everything", func(t *testing.T) {
		a, _ := For(Rev20250618)
		shaped := a.ShapeToolDescriptor(full)
		assert.NotNil(t, shaped.Annotations)
		assert.NotEmpty(t, shaped.OutputSchema)
	})

	t.Run("shape then validate round-trips on every revision", func(t *testing.T) {
		for _, v := range Revisions() {
			a, err := For(v)
			require.NoError(t, err)
			raw, err := jsonutil.Marshal(a.ShapeToolDescriptor(full))
			require.NoError(t, err)
			assert.NoError(t, a.ValidateToolDescriptor(jsontext.Value(raw)), v)
		}
	})
}
