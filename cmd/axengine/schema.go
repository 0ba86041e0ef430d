package main

import (
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/corvidlabs/axengine/internal/dispatcher"
)

// compileEnvelopeSchema loads and compiles the optional command
// envelope JSON schema named by path. An empty path disables envelope
// validation.
func compileEnvelopeSchema(path string) (*jsonschema.Schema, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read envelope schema: %w", err)
	}
	schema, err := dispatcher.CompileSchema(raw)
	if err != nil {
		return nil, err
	}
	return schema, nil
}
