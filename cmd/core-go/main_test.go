package main

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"sensormap/core-go/internal/config"
	"sensormap/core-go/internal/validate"
)

func TestSchemaProvider_Selection(t *testing.T) {
	log := zerolog.Nop()
	client := &http.Client{}

	p := schemaProvider(config.Config{SchemaURL: "http://schemas.internal/datamap.json", SchemaPath: "/etc/schema.yaml"}, client, log)
	if _, ok := p.(*validate.HTTPSchemaProvider); !ok {
		t.Fatalf("expected remote provider when SCHEMA_URL is set, got %T", p)
	}

	p = schemaProvider(config.Config{SchemaPath: "/etc/schema.yaml"}, client, log)
	if fp, ok := p.(validate.FileSchemaProvider); !ok || fp.Path != "/etc/schema.yaml" {
		t.Fatalf("expected file provider for SCHEMA_PATH, got %#v", p)
	}

	p = schemaProvider(config.Config{}, client, log)
	if _, ok := p.(*validate.StaticSchemaProvider); !ok {
		t.Fatalf("expected embedded schema by default, got %T", p)
	}
}
