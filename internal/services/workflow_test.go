package services_test

import (
	"reflect"
	"testing"

	"cloudvps-backend/internal/services"
)

const sampleWorkflow = `name: Windows RDP
on:
  workflow_dispatch:
    inputs:
      os_version:
        description: "Windows version"
        required: true
        default: "2022"
        type: choice
        options:
          - "2019"
          - "2022"
          - '2025'
      language:
        description: Display language
        default: en-US
        type: choice
        options:
          - en-US
          - vi-VN

jobs:
  rdp:
    runs-on: windows-latest
    timeout-minutes: 120
    steps:
      - uses: actions/checkout@v4
`

func TestParseWorkflow(t *testing.T) {
	opts, err := services.ParseWorkflow([]byte(sampleWorkflow))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	if !reflect.DeepEqual(opts.OSOptions, []string{"2019", "2022", "2025"}) {
		t.Errorf("Unexpected os options %v", opts.OSOptions)
	}
	if opts.OSDefault != "2022" {
		t.Errorf("Expected os default 2022, got %q", opts.OSDefault)
	}
	if !reflect.DeepEqual(opts.LanguageOptions, []string{"en-US", "vi-VN"}) {
		t.Errorf("Unexpected language options %v", opts.LanguageOptions)
	}
	if opts.LanguageDefault != "en-US" {
		t.Errorf("Expected language default en-US, got %q", opts.LanguageDefault)
	}
	if opts.TimeoutMinutes != 120 {
		t.Errorf("Expected timeout 120, got %d", opts.TimeoutMinutes)
	}
}

func TestParseWorkflowDefaults(t *testing.T) {
	opts, err := services.ParseWorkflow([]byte("name: empty\njobs: {}\n"))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}
	if opts.TimeoutMinutes != 360 {
		t.Errorf("Expected default timeout 360, got %d", opts.TimeoutMinutes)
	}
	if len(opts.OSOptions) != 0 || opts.OSDefault != "" {
		t.Errorf("Expected no os options, got %+v", opts)
	}

	if _, err := services.ParseWorkflow([]byte("a: [unclosed")); err == nil {
		t.Error("Expected an error for invalid YAML")
	}
}
