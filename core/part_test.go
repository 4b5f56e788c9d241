package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstText(t *testing.T) {
	tests := []struct {
		name  string
		parts []Part
		want  string
		ok    bool
	}{
		{"empty", nil, "", false},
		{"text", []Part{TextPart{Text: "hello"}}, "hello", true},
		{"pointer text", []Part{&TextPart{Text: "hello"}}, "hello", true},
		{"blank text", []Part{TextPart{}}, "", false},
		{"data first", []Part{DataPart{Data: map[string]any{"k": "v"}}, TextPart{Text: "late"}}, "", false},
		{"file", []Part{FilePart{URI: "s3://bucket/key"}}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FirstText(tt.parts)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestErrors_Unwrap(t *testing.T) {
	cause := errors.New("quota exceeded")

	var err error = &PipelineError{Pipeline: "feedback", Stage: 1, Agent: "classifier", Err: &WorkerError{Agent: "classifier", Err: cause}}
	assert.ErrorIs(t, err, cause)

	var we *WorkerError
	assert.ErrorAs(t, err, &we)
	assert.Equal(t, "classifier", we.Agent)

	assert.ErrorIs(t, &CacheCreationError{Identity: "title-agent", Err: cause}, cause)
	assert.True(t, IsValidation(NewValidationError("No message parts provided")))
	assert.False(t, IsValidation(cause))
}
