package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := NewStd("mark frequency out of range")
	ee := New(base).
		Component("fsk").
		Category(CategoryValidation).
		Context("mark_freq", 99000.0).
		Build()

	assert.Equal(t, "mark frequency out of range", ee.Error())
	assert.Equal(t, "fsk", ee.GetComponent())
	assert.Equal(t, string(CategoryValidation), ee.GetCategory())
	assert.Equal(t, 99000.0, ee.GetContext()["mark_freq"])
	assert.False(t, ee.GetTimestamp().IsZero())
}

func TestEnhancedErrorUnwrap(t *testing.T) {
	t.Parallel()

	sentinel := NewStd("no preamble detected")
	wrapped := New(fmt.Errorf("decode failed: %w", sentinel)).
		Category(CategoryDecode).
		Build()

	assert.True(t, Is(wrapped, sentinel), "Is should see through the enhanced wrapper")

	var ee *EnhancedError
	require.True(t, As(wrapped, &ee))
	assert.Equal(t, CategoryDecode, ee.Category)
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
		want     bool
	}{
		{
			name:     "matching category",
			err:      Newf("listen timeout").Category(CategoryTimeout).Build(),
			category: CategoryTimeout,
			want:     true,
		},
		{
			name:     "different category",
			err:      Newf("listen timeout").Category(CategoryTimeout).Build(),
			category: CategoryDecode,
			want:     false,
		},
		{
			name:     "plain error",
			err:      NewStd("plain"),
			category: CategoryTimeout,
			want:     false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsCategory(tt.err, tt.category))
		})
	}
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want ErrorCategory
	}{
		{"validation keyword", "invalid bit rate", CategoryValidation},
		{"timeout keyword", "listen timeout elapsed", CategoryTimeout},
		{"cancellation keyword", "transmit stopped by caller", CategoryCancellation},
		{"device keyword", "no playback device found", CategoryAudioDevice},
		{"network keyword", "broker unreachable", CategoryNetwork},
		{"fallback", "something else entirely", CategoryGeneric},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ee := Newf("%s", tt.text).Build()
			assert.Equal(t, tt.want, ee.Category)
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	ee := ValidationError("sample rate must be positive")
	assert.Equal(t, CategoryValidation, ee.Category)
	assert.Equal(t, "sample rate must be positive", ee.Error())
}
