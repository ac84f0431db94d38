package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var schemaFiles = map[string]string{
	TypeSubscribe: "subscribe.schema.json",
	TypeAdd:       "add.schema.json",
	TypeRemove:    "remove.schema.json",
	TypeSnapshot:  "snapshot.schema.json",
	TypeError:     "error.schema.json",
}

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// compileSchemas merges the shared definitions into every message schema so
// each compiles on its own.
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		rawDefs, err := schemaFS.ReadFile("schemas/defs.json")
		if err != nil {
			schemasErr = err
			return
		}
		var defs map[string]any
		if err := json.Unmarshal(rawDefs, &defs); err != nil {
			schemasErr = fmt.Errorf("defs.json: %w", err)
			return
		}
		out := make(map[string]*jsonschema.Schema, len(schemaFiles))
		for typ, name := range schemaFiles {
			raw, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = err
				return
			}
			var doc map[string]any
			if err := json.Unmarshal(raw, &doc); err != nil {
				schemasErr = fmt.Errorf("%s: %w", name, err)
				return
			}
			doc["definitions"] = defs
			merged, err := json.Marshal(doc)
			if err != nil {
				schemasErr = err
				return
			}
			s, err := jsonschema.CompileString(name, string(merged))
			if err != nil {
				schemasErr = fmt.Errorf("compile %s: %w", name, err)
				return
			}
			out[typ] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

// Validate checks a raw JSON message against the schema of its type.
func Validate(raw []byte) (string, error) {
	base, err := DecodeBase(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	all, err := compileSchemas()
	if err != nil {
		return "", err
	}
	s, ok := all[base.Type]
	if !ok {
		return base.Type, fmt.Errorf("%w: %q", ErrUnknownType, base.Type)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return base.Type, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if err := s.Validate(v); err != nil {
		return base.Type, fmt.Errorf("%w: %s: %v", ErrBadFrame, base.Type, err)
	}
	return base.Type, nil
}

// Decode validates raw and unmarshals it into the typed message for its type:
// *SubscribeMsg, *AddMsg, *RemoveMsg, *SnapshotMsg or *ErrorMsg.
func Decode(raw []byte) (any, error) {
	typ, err := Validate(raw)
	if err != nil {
		return nil, err
	}
	switch typ {
	case TypeSubscribe:
		return decodeAs[SubscribeMsg](raw)
	case TypeAdd:
		return decodeAs[AddMsg](raw)
	case TypeRemove:
		return decodeAs[RemoveMsg](raw)
	case TypeSnapshot:
		return decodeAs[SnapshotMsg](raw)
	case TypeError:
		return decodeAs[ErrorMsg](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
}

func decodeAs[T any](raw []byte) (any, error) {
	var m T
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return &m, nil
}
