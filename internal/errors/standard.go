// Package errors provides the categorized kernel error values.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryResource  ErrorCategory = "RESOURCE"
	CategoryFault     ErrorCategory = "FAULT"
	CategoryInvariant ErrorCategory = "INVARIANT"
	CategoryConfig    ErrorCategory = "CONFIG"
	CategoryDevice    ErrorCategory = "DEVICE"
)

// Error codes.
const (
	CodeNoFreeThread   = "NO_FREE_THREAD"
	CodeNoFreeTable    = "NO_FREE_TABLE"
	CodeNoFreeStack    = "NO_FREE_STACK"
	CodeArgsTooLarge   = "ARGS_TOO_LARGE"
	CodeIllegalSyscall = "ILLEGAL_SYSCALL"
	CodeInvariant      = "INVARIANT_VIOLATED"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeStalled        = "STALLED"
)

// StandardError provides a consistent error format
type StandardError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface
func (e *StandardError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// Is matches another StandardError with the same category and code, so
// callers can compare against the sentinels below with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Category == e.Category && (t.Code == "" || t.Code == e.Code)
}

// NewStandardError creates a new standardized error
func NewStandardError(category ErrorCategory, code, message string, context map[string]interface{}) *StandardError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &StandardError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// Sentinels for errors.Is.
var (
	ErrResource     = &StandardError{Category: CategoryResource}
	ErrNoFreeThread = &StandardError{Category: CategoryResource, Code: CodeNoFreeThread}
	ErrNoFreeTable  = &StandardError{Category: CategoryResource, Code: CodeNoFreeTable}
	ErrNoFreeStack  = &StandardError{Category: CategoryResource, Code: CodeNoFreeStack}
	ErrArgsTooLarge = &StandardError{Category: CategoryResource, Code: CodeArgsTooLarge}
	ErrInvariant    = &StandardError{Category: CategoryInvariant}
	ErrConfig       = &StandardError{Category: CategoryConfig}
	ErrStalled      = &StandardError{Category: CategoryDevice, Code: CodeStalled}
)

// Common error constructors

func NoFreeThread(poolSize int) *StandardError {
	return NewStandardError(CategoryResource, CodeNoFreeThread,
		"No terminated thread found. New thread will not be created.",
		map[string]interface{}{"pool": poolSize})
}

func NoFreeTable(poolSize int) *StandardError {
	return NewStandardError(CategoryResource, CodeNoFreeTable,
		"No free L2 table entry found. New process will not be created.",
		map[string]interface{}{"pool": poolSize})
}

func NoFreeStack(table int) *StandardError {
	return NewStandardError(CategoryResource, CodeNoFreeStack,
		fmt.Sprintf("No free stack page in L2 table %d. New thread will not be created.", table),
		map[string]interface{}{"table": table})
}

func ArgsTooLarge(size, limit uint32) *StandardError {
	return NewStandardError(CategoryResource, CodeArgsTooLarge,
		fmt.Sprintf("Argument block of %d bytes exceeds stack page of %d bytes", size, limit),
		map[string]interface{}{"size": size, "limit": limit})
}

func IllegalSyscall(code uint32, privileged bool) *StandardError {
	return NewStandardError(CategoryFault, CodeIllegalSyscall,
		fmt.Sprintf("Illegal supervisor call %d", code),
		map[string]interface{}{"code": code, "privileged": privileged})
}

func InvariantViolated(format string, args ...interface{}) *StandardError {
	return NewStandardError(CategoryInvariant, CodeInvariant, fmt.Sprintf(format, args...), nil)
}

func InvalidConfig(field string, err error) *StandardError {
	return NewStandardError(CategoryConfig, CodeInvalidConfig,
		fmt.Sprintf("invalid %s: %v", field, err),
		map[string]interface{}{"field": field})
}

func Stalled(reason string) *StandardError {
	return NewStandardError(CategoryDevice, CodeStalled,
		fmt.Sprintf("machine stalled: %s", reason),
		map[string]interface{}{"reason": reason})
}

// CategoryOf returns the category of the first StandardError in err's chain.
func CategoryOf(err error) (ErrorCategory, bool) {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Category, true
	}
	return "", false
}
