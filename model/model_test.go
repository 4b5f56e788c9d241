package model

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentpipe/core"
)

func TestComplete_CannedResponse(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("I love the app", "User praises the app.")

	resp, err := Complete(context.Background(), m, Request{Messages: []core.Message{core.NewUserMessage("I love the app")}})
	require.NoError(t, err)
	assert.Equal(t, "User praises the app.", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestComplete_StreamingReturnsFinalChunk(t *testing.T) {
	m := NewMockModel("mock-1", "mock")

	resp, err := Complete(context.Background(), m, Request{Stream: true, Messages: []core.Message{core.NewUserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hi", resp.Text)
}

func TestComplete_Transform(t *testing.T) {
	m := NewMockModel("upper", "mock")
	m.SetTransform(func(req Request) (string, error) {
		return strings.ToUpper(req.Messages[len(req.Messages)-1].Text), nil
	})

	resp, err := Complete(context.Background(), m, Request{Messages: []core.Message{core.NewUserMessage("I love the app")}})
	require.NoError(t, err)
	assert.Equal(t, "I LOVE THE APP", resp.Text)
}

func TestComplete_Errors(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	_, err := Complete(context.Background(), m, Request{})
	assert.Error(t, err)

	boom := errors.New("rate limited")
	m.SetTransform(func(Request) (string, error) { return "", boom })
	_, err = Complete(context.Background(), m, Request{Messages: []core.Message{core.NewUserMessage("x")}})
	assert.ErrorIs(t, err, boom)
}

func TestMockModel_Info(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	assert.Equal(t, Info{Name: "mock-1", Provider: "mock"}, m.Info())
}
