package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestETag(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tag, err := ETag()
		if err != nil {
			t.Fatalf("ETag: %v", err)
		}
		if len(tag) != Length {
			t.Fatalf("expected %d chars, got %q", Length, tag)
		}
		for _, r := range tag {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, tag)
			}
		}
		if seen[tag] {
			t.Fatalf("duplicate etag %q", tag)
		}
		seen[tag] = true
	}
}

func TestSnapshotIDIsUUID(t *testing.T) {
	if _, err := uuid.Parse(Default.SnapshotID()); err != nil {
		t.Fatalf("expected uuid snapshot id: %v", err)
	}
}
