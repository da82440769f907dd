// Package errors provides enhanced error handling with component attribution,
// error categories, and structured context. It wraps the standard errors
// package, so callers can use this package as a drop-in replacement and still
// interoperate with errors.Is/As/Unwrap.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for aggregation and metrics.
type ErrorCategory string

// CategorizedError is implemented by errors that carry a category.
type CategorizedError interface {
	error
	GetCategory() string
}

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryAudioDevice    ErrorCategory = "audio-device"
	CategoryEncode         ErrorCategory = "encode"
	CategoryDecode         ErrorCategory = "decode"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryCancellation   ErrorCategory = "cancellation"
	CategoryState          ErrorCategory = "state"
	CategoryFileIO         ErrorCategory = "file-io"
	CategoryNetwork        ErrorCategory = "network"
	CategoryMQTTConnection ErrorCategory = "mqtt-connection"
	CategorySystem         ErrorCategory = "system"
	CategoryGeneric        ErrorCategory = "generic"
)

// ComponentUnknown is used when the originating component cannot be detected.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with component, category, and context metadata.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is reports whether target matches this error or its chain. Two enhanced
// errors match when their underlying errors match.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return errors.Is(ee.Err, other.Err)
	}
	return errors.Is(ee.Err, target)
}

func (ee *EnhancedError) GetComponent() string { return ee.Component }

func (ee *EnhancedError) GetCategory() string { return string(ee.Category) }

func (ee *EnhancedError) GetContext() map[string]any { return ee.Context }

func (ee *EnhancedError) GetTimestamp() time.Time { return ee.Timestamp }

// ErrorBuilder provides a fluent API for constructing enhanced errors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates an error builder wrapping an existing error.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates an error builder from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return &ErrorBuilder{err: fmt.Errorf(format, args...)}
}

// Component sets the component where the error originated.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Context adds a key-value pair to the error context.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// DeviceContext adds audio device information to the error context.
func (eb *ErrorBuilder) DeviceContext(deviceName, direction string) *ErrorBuilder {
	eb.Context("device_name", deviceName)
	eb.Context("device_direction", direction)
	return eb
}

// FileContext adds file information to the error context.
func (eb *ErrorBuilder) FileContext(filePath string, fileSize int64) *ErrorBuilder {
	eb.Context("file_path", filePath)
	if fileSize >= 0 {
		eb.Context("file_size", fileSize)
	}
	return eb
}

// Timing adds operation duration to the error context.
func (eb *ErrorBuilder) Timing(operation string, duration time.Duration) *ErrorBuilder {
	eb.Context("operation", operation)
	eb.Context("duration_ms", duration.Milliseconds())
	return eb
}

// Build creates the final enhanced error. Component and category are
// detected from the call stack and error text when not set explicitly.
func (eb *ErrorBuilder) Build() *EnhancedError {
	component := eb.component
	if component == "" {
		component = detectComponent()
	}
	category := eb.category
	if category == "" {
		category = detectCategory(eb.err)
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

var (
	componentMu       sync.RWMutex
	componentRegistry = map[string]string{
		"internal/fsk":           "fsk",
		"internal/audio":         "audio",
		"internal/modem":         "modem",
		"internal/bundle":        "bundle",
		"internal/conf":          "conf",
		"internal/mqtt":          "mqtt",
		"internal/observability": "observability",
		"internal/logging":       "logging",
		"cmd/":                   "cmd",
	}
)

// RegisterComponent maps a package path pattern to a component name.
// Patterns are matched as substrings of the caller's function name.
func RegisterComponent(packagePattern, componentName string) {
	componentMu.Lock()
	defer componentMu.Unlock()
	componentRegistry[packagePattern] = componentName
}

// detectComponent walks the call stack to find the originating component,
// skipping frames inside this package.
func detectComponent() string {
	for depth := 2; depth <= 8; depth++ {
		pc, _, _, ok := runtime.Caller(depth)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}
		name := fn.Name()
		if strings.Contains(name, "internal/errors") {
			continue
		}
		componentMu.RLock()
		for pattern, component := range componentRegistry {
			if strings.Contains(name, pattern) {
				componentMu.RUnlock()
				return component
			}
		}
		componentMu.RUnlock()
	}
	return ComponentUnknown
}

// detectCategory guesses a category from the error text when the caller
// did not set one.
func detectCategory(err error) ErrorCategory {
	if err == nil {
		return CategoryGeneric
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "validation"):
		return CategoryValidation
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return CategoryTimeout
	case strings.Contains(msg, "cancel") || strings.Contains(msg, "stopped"):
		return CategoryCancellation
	case strings.Contains(msg, "device"):
		return CategoryAudioDevice
	case strings.Contains(msg, "connection") || strings.Contains(msg, "broker"):
		return CategoryNetwork
	case strings.Contains(msg, "file") || strings.Contains(msg, "permission denied"):
		return CategoryFileIO
	default:
		return CategoryGeneric
	}
}

// ValidationError creates an enhanced validation error from a message.
func ValidationError(message string) *EnhancedError {
	return Newf("%s", message).Category(CategoryValidation).Build()
}

// Standard library passthroughs so callers need only one errors import.

// NewStd creates a standard error without enhancement. Use for sentinel
// errors that callers match with Is.
func NewStd(text string) error {
	return errors.New(text)
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func Unwrap(err error) error { return errors.Unwrap(err) }

func Join(errs ...error) error { return errors.Join(errs...) }

// IsCategory reports whether err carries the given category anywhere in
// its chain.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	if errors.As(err, &ee) {
		return ee.Category == category
	}
	return false
}
