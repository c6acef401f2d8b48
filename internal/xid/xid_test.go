package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("tx")
	b := New("tx")
	if a == b {
		t.Fatalf("expected unique ids, got %s twice", a)
	}
	if !strings.HasPrefix(a, "tx-") {
		t.Fatalf("expected tx- prefix, got %s", a)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(a, "tx-")); err != nil {
		t.Fatalf("expected uuid suffix: %v", err)
	}
}
