// Package configcodec serializes archetype configuration structs to and
// from the opaque blob stored on an engine.Prototype, so prototypes can be
// written to and read back from a Backend (spec.md §6's persisted
// prototype registry; "configuration-blob" in the archetype-factory
// contract).
package configcodec

import (
	"encoding/json"
	"fmt"
)

// Version tags the wire format of a config blob so a future format change
// can be detected instead of silently misparsed.
type Version uint16

// CurrentVersion is the only version this build emits or accepts.
const CurrentVersion Version = 0

// blob is the on-wire envelope: a version tag plus the archetype's own
// JSON-encoded configuration.
type blob struct {
	Version Version         `json:"version"`
	Config  json.RawMessage `json:"config"`
}

// Marshal encodes an archetype's configuration struct into the blob an
// engine.Prototype carries.
func Marshal[T any](cfg T) ([]byte, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("configcodec: marshal config: %w", err)
	}
	return json.Marshal(blob{Version: CurrentVersion, Config: raw})
}

// Unmarshal decodes a config blob back into T, failing if the blob was
// written by an incompatible version.
func Unmarshal[T any](data []byte) (T, error) {
	var zero T
	var b blob
	if err := json.Unmarshal(data, &b); err != nil {
		return zero, fmt.Errorf("configcodec: unmarshal envelope: %w", err)
	}
	if b.Version != CurrentVersion {
		return zero, fmt.Errorf("configcodec: unsupported config version %d", b.Version)
	}
	var cfg T
	if err := json.Unmarshal(b.Config, &cfg); err != nil {
		return zero, fmt.Errorf("configcodec: unmarshal config: %w", err)
	}
	return cfg, nil
}
