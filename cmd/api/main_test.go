package main

import (
	"net/http"
	"testing"
)

func TestServerWriteDeadlineOutlastsExtraction(t *testing.T) {
	server := newHTTPServer(":0", http.NewServeMux())

	if server.WriteTimeout <= extractionTimeout {
		t.Errorf("WriteTimeout = %v, must exceed the %v extraction call", server.WriteTimeout, extractionTimeout)
	}
	if server.ReadTimeout <= 0 || server.IdleTimeout <= 0 {
		t.Error("read and idle deadlines must be set")
	}
}
