package main

import (
	"crypto/sha256"
	"fmt"
	"testing"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{filename: "0001_create_transactions.sql", valid: true, version: "0001", name: "create_transactions"},
		{filename: "0002_create_users.sql", valid: true, version: "0002", name: "create_users"},
		{filename: "001_short_version.sql", valid: false},
		{filename: "0001_missing_extension", valid: false},
		{filename: "0001.sql", valid: false},
		{filename: "notes.md", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationPattern.FindStringSubmatch(tt.filename)
			if !tt.valid {
				if matches != nil {
					t.Errorf("%q should not match", tt.filename)
				}
				return
			}
			if matches == nil {
				t.Fatalf("%q should match", tt.filename)
			}
			if matches[1] != tt.version || matches[2] != tt.name {
				t.Errorf("parsed (%q, %q), want (%q, %q)", matches[1], matches[2], tt.version, tt.name)
			}
		})
	}
}

func TestMigrationChecksumStability(t *testing.T) {
	content := []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.transactions` (id STRING);")

	first := fmt.Sprintf("%x", sha256.Sum256(content))
	second := fmt.Sprintf("%x", sha256.Sum256(content))
	if first != second {
		t.Error("same content must produce the same checksum")
	}

	changed := fmt.Sprintf("%x", sha256.Sum256([]byte("CREATE TABLE other (id STRING);")))
	if first == changed {
		t.Error("different content must produce different checksums")
	}
}
