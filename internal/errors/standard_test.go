package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/practos/practos/internal/testrunner/assert"
)

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("create thread: %w", NoFreeStack(3))

	assert.ErrorIs(t, err, ErrNoFreeStack)
	assert.ErrorIs(t, err, ErrResource)
	assert.False(t, errors.Is(err, ErrNoFreeTable))
	assert.False(t, errors.Is(err, ErrInvariant))

	cat, ok := CategoryOf(err)
	assert.True(t, ok)
	assert.Equal(t, cat, CategoryResource)
}

func TestStandardErrorFormat(t *testing.T) {
	err := IllegalSyscall(9, false)
	assert.Contains(t, err.Error(), "[FAULT:ILLEGAL_SYSCALL] Illegal supervisor call 9")
	assert.Contains(t, err.Caller, "errors.IllegalSyscall")
	assert.Equal(t, err.Context["code"], interface{}(uint32(9)))
}

func TestCategoryOfForeignError(t *testing.T) {
	_, ok := CategoryOf(errors.New("plain"))
	assert.False(t, ok)
}
