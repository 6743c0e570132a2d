package completion

import (
	"context"
	"testing"
	"time"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestRouterDispatchesByProvider(t *testing.T) {
	gemini := new(MockCompleter)
	openrouter := new(MockCompleter)

	r := NewRouter()
	r.Register(models.ProviderGemini, gemini)
	r.Register(models.ProviderOpenRouter, openrouter)

	gemini.On("Complete", mock.Anything, mock.MatchedBy(func(req Request) bool {
		return req.Model.ID == freeModel.ID
	})).Return("from gemini", nil).Once()

	text, err := r.Complete(context.Background(), Request{Model: freeModel})
	require.NoError(t, err)
	assert.Equal(t, "from gemini", text)

	gemini.AssertExpectations(t)
	openrouter.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	assert.True(t, r.Has(models.ProviderOpenRouter))
	assert.False(t, r.Has(models.ProviderOllama))
}

func TestRouterUnknownProvider(t *testing.T) {
	_, err := NewRouter().Complete(context.Background(), Request{Model: localModel})
	assert.Equal(t, BadRequest, KindOf(err))
}

func TestThrottleRejectsLocally(t *testing.T) {
	next := new(MockCompleter)
	next.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	c := Throttle(next, 2)
	for i := 0; i < 2; i++ {
		text, err := c.Complete(context.Background(), Request{Model: freeModel})
		require.NoError(t, err)
		assert.Equal(t, "ok", text)
	}

	_, err := c.Complete(context.Background(), Request{Model: freeModel})
	assert.Equal(t, RateLimited, KindOf(err))
	next.AssertNumberOfCalls(t, "Complete", 2)
}

func TestThrottleDisabled(t *testing.T) {
	next := CompleterFunc(func(ctx context.Context, req Request) (string, error) { return "ok", nil })
	assert.NotNil(t, Throttle(next, 0))
	_, isThrottled := Throttle(next, 0).(*throttled)
	assert.False(t, isThrottled)
}

func TestBuildMessages(t *testing.T) {
	at := time.Now()
	hist := []chat.Message{
		chat.NewGreeting(chat.InitialGreeting, at),
		chat.NewUserMessage("hi", at),
		chat.NewErrorMessage("failed", at),
		chat.NewUserMessage("   ", at),
		chat.NewAssistantMessage("hello", at),
	}

	got := BuildMessages("sys", hist)
	assert.Equal(t, []Message{
		{Role: chat.RoleSystem, Content: "sys"},
		{Role: chat.RoleAssistant, Content: chat.InitialGreeting},
		{Role: chat.RoleUser, Content: "hi"},
		{Role: chat.RoleAssistant, Content: "hello"},
	}, got)

	assert.Len(t, BuildMessages("", hist[1:2]), 1)
}
