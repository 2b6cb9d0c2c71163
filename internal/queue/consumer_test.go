package queue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHandleMessageAppendsAuditLine(t *testing.T) {
	t.Chdir(t.TempDir())

	body := []byte(`{"type":"session.fingerprint_mismatch","subject":"42","role":"USER",` +
		`"session_id":"s-1","source_ip":"10.0.0.1","user_agent":"curl","detail":"digest mismatch",` +
		`"occurred_at":"2026-01-02T03:04:05Z"}`)
	if err := handleMessage(body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	data, err := os.ReadFile(filepath.Join("logs", "security.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{"session.fingerprint_mismatch", "subject=42", "ip=10.0.0.1", "digest mismatch"} {
		if !strings.Contains(line, want) {
			t.Fatalf("audit line missing %q: %s", want, line)
		}
	}
	if !strings.HasSuffix(line, "\n") {
		t.Fatalf("audit line must end in a newline")
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := handleMessage([]byte("{not json")); err == nil {
		t.Fatalf("garbage payload should fail")
	}
}
