package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/thunk/internal/journal"
)

var (
	_ journal.SessionGenerator = (*FixedSessionGenerator)(nil)
	_ journal.Sequencer        = (*DeterministicClock)(nil)
)

func TestFixedSessionGenerator(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"custom token", "session-123", "session-123"},
		{"empty uses default", "", DefaultSession},
		{"uuid shaped", "01234567-89ab-cdef-0123-456789abcdef", "01234567-89ab-cdef-0123-456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := NewFixedSessionGenerator(tt.token)
			assert.Equal(t, tt.want, gen.Generate())
			assert.Equal(t, tt.want, gen.Generate())
		})
	}
}

func TestFixedSessionGenerator_ThreadSafe(t *testing.T) {
	gen := NewFixedSessionGenerator("shared")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Equal(t, "shared", gen.Generate())
			}
		}()
	}
	wg.Wait()
}
