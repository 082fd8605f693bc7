package recording

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestContextHolderLifecycle(t *testing.T) {
	holder := NewContextHolder(testLogger(t))

	// Empty holder
	_, ok := holder.Get()
	assert.False(t, ok)
	_, ok = holder.Take()
	assert.False(t, ok)

	// Set then read without consuming
	ctx := Context{Type: ContextPatient, PatientID: "p-1", Timestamp: time.Now().UTC()}
	holder.Set(ctx)

	got, ok := holder.Get()
	assert.True(t, ok)
	assert.Equal(t, "p-1", got.PatientID)

	// Take consumes exactly once
	got, ok = holder.Take()
	assert.True(t, ok)
	assert.Equal(t, "p-1", got.PatientID)

	_, ok = holder.Take()
	assert.False(t, ok, "context must not be consumable twice")
}

func TestContextHolderClearOnExitPaths(t *testing.T) {
	holder := NewContextHolder(testLogger(t))

	// Cancel path
	holder.Set(Context{Type: ContextGlobal, Timestamp: time.Now().UTC()})
	holder.Clear()
	_, ok := holder.Get()
	assert.False(t, ok, "context must not leak past a cancel")

	// Clear on an empty holder is a no-op
	holder.Clear()
	_, ok = holder.Get()
	assert.False(t, ok)
}

func TestContextHolderSetReplaces(t *testing.T) {
	holder := NewContextHolder(testLogger(t))

	holder.Set(Context{Type: ContextPatient, PatientID: "p-1", Timestamp: time.Now().UTC()})
	holder.Set(Context{Type: ContextGlobal, Timestamp: time.Now().UTC()})

	got, ok := holder.Take()
	assert.True(t, ok)
	assert.Equal(t, ContextGlobal, got.Type)
}
