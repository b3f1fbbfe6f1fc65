// Package payload builds the telemetry envelope emitted for an identity
// context and validates it against a JSON Schema before it leaves the process.
// Transport is the embedding host's concern; emission here stops at bytes.
package payload

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ozlabs/identityctx/pkg/identity"
	"github.com/ozlabs/identityctx/pkg/metrics"
)

// SchemaVersion identifies the envelope layout for downstream consumers.
const SchemaVersion = "1.0"

// Envelope is the anonymous identity record emitted per refresh cycle.
type Envelope struct {
	SchemaVersion   string    `json:"schema_version"`
	SessionID       string    `json:"session_id"`
	Timestamp       time.Time `json:"timestamp"`
	Platform        string    `json:"platform,omitempty"`
	PlatformVersion string    `json:"platform_version,omitempty"`
	Cohort          int       `json:"cohort"`
	HashUserID      string    `json:"hash_user_id"`
	MACAddressHash  string    `json:"mac_address_hash"`
	ToolVersion     string    `json:"tool_version"`
	HostVersion     string    `json:"host_version"`
	ModuleVersion   string    `json:"module_version"`
	IsInternal      bool      `json:"is_internal"`
}

// Build assembles an envelope from the context's current state. Platform
// facts are optional enrichment supplied by the caller.
func Build(c *identity.Context, platform, platformVersion string) Envelope {
	return Envelope{
		SchemaVersion:   SchemaVersion,
		SessionID:       c.SessionID,
		Timestamp:       time.Now().UTC(),
		Platform:        platform,
		PlatformVersion: platformVersion,
		Cohort:          c.Cohort(),
		HashUserID:      c.HashUserID(),
		MACAddressHash:  c.MACAddressHash(),
		ToolVersion:     c.ToolVersion().String(),
		HostVersion:     c.HostVersion().String(),
		ModuleVersion:   c.ModuleVersion().String(),
		IsInternal:      c.IsInternal(),
	}
}

// Marshal renders the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Validator checks envelopes against the JSON Schema contract shared with
// downstream telemetry consumers.
type Validator struct {
	schema           *gojsonschema.Schema
	enableValidation bool
}

// NewValidator loads and compiles the schema at schemaPath. When
// enableValidation is false the validator passes everything through and the
// schema file is not read.
func NewValidator(schemaPath string, enableValidation bool) (*Validator, error) {
	v := &Validator{enableValidation: enableValidation}

	if !enableValidation {
		return v, nil
	}

	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", schemaPath, err)
	}

	schemaLoader := gojsonschema.NewBytesLoader(schemaBytes)
	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	v.schema = schema

	return v, nil
}

// Validate checks envelope JSON against the schema. Validation failures are
// counted in metrics and returned so the caller can drop the envelope.
func (v *Validator) Validate(data []byte) error {
	if !v.enableValidation || v.schema == nil {
		return nil
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		metrics.PayloadValidationErrorsTotal.Inc()
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		metrics.PayloadValidationErrorsTotal.Inc()

		var details []string
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("envelope failed schema validation: %s", strings.Join(details, "; "))
	}

	return nil
}
