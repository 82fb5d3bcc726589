package memory

import (
	"testing"

	"github.com/aretw0/winnow/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunProjectStoreContract(t, New())
}
