// Package schema exposes metadata from the embedded API contract for runtime
// use.
package schema

import (
	"sync"

	"gopkg.in/yaml.v3"

	"panelcore/docs/schema/openapi"
)

// Metadata captures the info block of the OpenAPI document.
type Metadata struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

type specDoc struct {
	Info Metadata `yaml:"info"`
}

var (
	metaOnce sync.Once
	meta     Metadata
	metaErr  error
)

func load() {
	var doc specDoc
	metaErr = yaml.Unmarshal(openapi.Spec(), &doc)
	if metaErr == nil {
		meta = doc.Info
	}
}

// APIVersion returns the contract version declared in the embedded OpenAPI
// document (source of truth: docs/schema/openapi/api.yaml).
func APIVersion() (string, error) {
	metaOnce.Do(load)
	return meta.Version, metaErr
}

// APIMetadata returns the title and version of the embedded API contract.
func APIMetadata() (Metadata, error) {
	metaOnce.Do(load)
	return meta, metaErr
}
