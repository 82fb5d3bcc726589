package file

import (
	"path/filepath"
	"testing"

	"github.com/aretw0/winnow/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunProjectStoreContract(t, New(t.TempDir()))
}

func TestFileStore_DefaultPath(t *testing.T) {
	s := New("")
	assert.Equal(t, filepath.Join(".winnow", "projects"), s.BasePath)
}

func TestFileStore_ListIgnoresStrays(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	_, err := s.UpdatePartial(t.Context(), "real-project", map[string]any{"topic": "x"})
	assert.NoError(t, err)

	ids, err := s.List(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, []string{"real-project"}, ids)
}
