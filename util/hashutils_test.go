package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashConsistency(t *testing.T) {
	data := []byte("788788")
	assert.Equal(t, HashCode(data), HashCode(data), "hash should be deterministic")
}
