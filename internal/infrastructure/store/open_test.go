package store

import (
	"context"
	"testing"

	"github.com/example/ec-storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), &config.Config{StoreBackend: config.StoreMemory})

	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &MemoryStore{}, s)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, _, err := Open(context.Background(), &config.Config{StoreBackend: "sqlite"})

	assert.Error(t, err)
}
