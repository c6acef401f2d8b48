package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random id carrying a short readable prefix, e.g. "tx-<uuid>".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
