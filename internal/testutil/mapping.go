// Package testutil holds fixtures shared by the stage tests.
package testutil

import (
	"bytes"
	_ "embed"
	"sync"

	"github.com/roach88/relq/internal/mapping"
)

//go:embed testdata/kitchen.yaml
var kitchenYAML []byte

var (
	kitchenOnce   sync.Once
	kitchenSchema *mapping.Schema
	kitchenErr    error
)

// KitchenSchema returns the Cook/Chef/Kitchen/Restaurant/Knife mapping.
//
// The schema is decoded once and shared; it is read-only after loading, so
// tests may use it in parallel.
func KitchenSchema() *mapping.Schema {
	kitchenOnce.Do(func() {
		kitchenSchema, kitchenErr = mapping.DecodeYAML(bytes.NewReader(kitchenYAML))
	})
	if kitchenErr != nil {
		panic("testutil: kitchen mapping: " + kitchenErr.Error())
	}
	return kitchenSchema
}

// KitchenResolver returns a resolver over KitchenSchema.
func KitchenResolver() *mapping.Resolver {
	return mapping.NewResolver(KitchenSchema())
}

// KitchenYAML returns the raw mapping document.
func KitchenYAML() []byte {
	return bytes.Clone(kitchenYAML)
}
