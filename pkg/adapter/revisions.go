package adapter

import (
	"errors"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
)

// revision is the one concrete Adapter implementation. Each supported
// revision is a tagged instance of it; behavior differences are data,
// not subclasses.
type revision struct {
	version       string
	schemaField   string // descriptor field holding the tool input schema
	asyncTools    bool
	batch         bool
	versionHeader bool
	legacyInit    bool // accept the bare "initialized" spelling
	annotations   bool // descriptor annotations defined in this revision
	outputSchema  bool // descriptor outputSchema defined in this revision
}

var (
	rev20241105 = &revision{
		version:     Rev20241105,
		schemaField: "inputSchema",
		batch:       true,
		legacyInit:  true,
	}

	rev20250326 = &revision{
		version:     Rev20250326,
		schemaField: "inputSchema",
		batch:       true,
		annotations: true,
	}

	rev20250618 = &revision{
		version:       Rev20250618,
		schemaField:   "inputSchema",
		asyncTools:    true,
		versionHeader: true,
		annotations:   true,
		outputSchema:  true,
	}
)

func (r *revision) Version() string             { return r.version }
func (r *revision) SupportsAsyncTools() bool    { return r.asyncTools }
func (r *revision) SupportsBatch() bool         { return r.batch }
func (r *revision) RequiresVersionHeader() bool { return r.versionHeader }

func (r *revision) AcceptsInitialized(method string) bool {
	if method == protocol.NotifInitialized {
		return true
	}
	return r.legacyInit && method == protocol.NotifInitializedLegacy
}

func (r *revision) BuildInitializeParams(info protocol.ClientInfo) protocol.InitializeParams {
	return protocol.InitializeParams{
		ProtocolVersion: r.version,
		Capabilities:    protocol.ClientCapabilities{},
		ClientInfo:      info,
	}
}

func (r *revision) ValidateInitializeResult(raw jsontext.Value) error {
	var probe struct {
		ProtocolVersion *string        `json:"protocolVersion"`
		Capabilities    jsontext.Value `json:"capabilities"`
		ServerInfo      *struct {
			Name    *string `json:"name"`
			Version *string `json:"version"`
		} `json:"serverInfo"`
	}
	if err := unmarshalStrictObject(raw, &probe); err != nil {
		return &ValidationError{Field: "result", Reason: err.Error()}
	}

	var errs []error
	switch {
	case probe.ProtocolVersion == nil:
		errs = append(errs, &ValidationError{Field: "protocolVersion", Reason: "missing"})
	case *probe.ProtocolVersion == "":
		errs = append(errs, &ValidationError{Field: "protocolVersion", Reason: "empty"})
	}

	switch {
	case len(probe.Capabilities) == 0:
		errs = append(errs, &ValidationError{Field: "capabilities", Reason: "missing"})
	case !isObject(probe.Capabilities):
		errs = append(errs, &ValidationError{Field: "capabilities", Reason: "must be an object"})
	}

	switch {
	case probe.ServerInfo == nil:
		errs = append(errs, &ValidationError{Field: "serverInfo", Reason: "missing"})
	default:
		if probe.ServerInfo.Name == nil || *probe.ServerInfo.Name == "" {
			errs = append(errs, &ValidationError{Field: "serverInfo.name", Reason: "missing or empty"})
		}
		if probe.ServerInfo.Version == nil || *probe.ServerInfo.Version == "" {
			errs = append(errs, &ValidationError{Field: "serverInfo.version", Reason: "missing or empty"})
		}
	}

	return errors.Join(errs...)
}

func (r *revision) ValidateToolDescriptor(raw jsontext.Value) error {
	var fields map[string]jsontext.Value
	if err := unmarshalStrictObject(raw, &fields); err != nil {
		return &ValidationError{Field: "tool", Reason: err.Error()}
	}

	var errs []error

	name, ok := fields["name"]
	switch {
	case !ok:
		errs = append(errs, &ValidationError{Field: "name", Reason: "missing"})
	default:
		var s string
		if err := jsonutil.Unmarshal(name, &s); err != nil || s == "" {
			errs = append(errs, &ValidationError{Field: "name", Reason: "must be a non-empty string"})
		}
	}

	schema, ok := fields[r.schemaField]
	switch {
	case !ok:
		errs = append(errs, &ValidationError{Field: r.schemaField, Reason: "missing"})
	case !isObject(schema):
		errs = append(errs, &ValidationError{Field: r.schemaField, Reason: "must be an object"})
	}

	if _, ok := fields["annotations"]; ok && !r.annotations {
		errs = append(errs, &ValidationError{
			Field:  "annotations",
			Reason: "not defined in revision " + r.version,
		})
	}
	if _, ok := fields["outputSchema"]; ok && !r.outputSchema {
		errs = append(errs, &ValidationError{
			Field:  "outputSchema",
			Reason: "not defined in revision " + r.version,
		})
	}

	return errors.Join(errs...)
}

func (r *revision) ShapeToolDescriptor(t protocol.Tool) protocol.Tool {
	if !r.annotations {
		t.Annotations = nil
	}
	if !r.outputSchema {
		t.OutputSchema = nil
	}
	return t
}

// ---------------------------------------------------------------------------
// Raw JSON probing helpers
// ---------------------------------------------------------------------------

var errNotObject = errors.New("not a JSON object")

func unmarshalStrictObject(raw jsontext.Value, v any) error {
	if !isObject(raw) {
		return errNotObject
	}
	return jsonutil.Unmarshal(raw, v)
}

func isObject(raw jsontext.Value) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b == '{'
		}
	}
	return false
}
