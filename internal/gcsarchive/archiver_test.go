package gcsarchive

import (
	"testing"
	"time"
)

func TestParseURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{
			name:       "simple object",
			uri:        "gs://my-bucket/statement.csv",
			wantBucket: "my-bucket",
			wantObject: "statement.csv",
		},
		{
			name:       "nested path",
			uri:        "gs://archive/statements/u1/20240115T120000_file.txt",
			wantBucket: "archive",
			wantObject: "statements/u1/20240115T120000_file.txt",
		},
		{
			name:    "missing scheme",
			uri:     "my-bucket/statement.csv",
			wantErr: true,
		},
		{
			name:    "bucket only",
			uri:     "gs://my-bucket",
			wantErr: true,
		},
		{
			name:    "empty object path",
			uri:     "gs://my-bucket/",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseURI(%q) succeeded, want error", tt.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseURI(%q): %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	got := ObjectName("user-42", "jan.csv", now)
	want := "statements/user-42/20240115T120000_jan.csv"
	if got != want {
		t.Errorf("ObjectName = %q, want %q", got, want)
	}
}
