package google

import "testing"

func TestConvertTypeString(t *testing.T) {
	cases := map[string]string{
		"string":  "TypeString",
		"number":  "TypeNumber",
		"unknown": "TypeUnspecified",
	}
	for in, want := range cases {
		got := convertTypeString(in).String()
		if got != want {
			t.Fatalf("convertTypeString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConvertSchemaExtractsPropertiesAndRequired(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"location": map[string]any{"type": "string", "description": "city name"},
		},
		"required": []any{"location"},
	}

	result := convertSchema(schema)
	if result == nil {
		t.Fatal("expected non-nil schema")
	}
	if len(result.Required) != 1 || result.Required[0] != "location" {
		t.Fatalf("expected required=[location], got %v", result.Required)
	}
	if result.Properties["location"].Description != "city name" {
		t.Fatalf("expected description propagated, got %+v", result.Properties["location"])
	}
}

func TestConvertSchemaNilInput(t *testing.T) {
	if convertSchema(nil) != nil {
		t.Fatal("expected nil schema for nil input")
	}
}
