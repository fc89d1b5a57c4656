package app

import (
	"strings"
	"testing"
	"time"

	"marketplace_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transcriptFixture() (*domain.Conversation, []domain.Message) {
	start := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	conv := &domain.Conversation{
		ID:           "c-42",
		Participants: []string{"buyer", "seller"},
		CreatedAt:    start,
		LastActiveAt: start.Add(time.Hour),
	}
	msgs := []domain.Message{
		{ID: "1", Sender: "buyer", Content: "is it <b>new</b>?", CreatedAt: start.Add(time.Minute)},
		{ID: "2", Sender: "seller", Content: `<script>alert("x")</script> & more`, CreatedAt: start.Add(2 * time.Minute)},
		{ID: "3", Sender: "buyer", Content: "it's fine", CreatedAt: start.Add(3 * time.Minute)},
	}
	return conv, msgs
}

func TestBuildTranscript_Deterministic(t *testing.T) {
	conv, msgs := transcriptFixture()

	a, err := BuildTranscript(conv, msgs, "scam")
	require.NoError(t, err)
	b, err := BuildTranscript(conv, msgs, "scam")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestBuildTranscript_EscapesUserText(t *testing.T) {
	conv, msgs := transcriptFixture()
	doc, err := BuildTranscript(conv, msgs, `<img src=x onerror=alert(1)>`)
	require.NoError(t, err)

	assert.NotContains(t, doc, "<script>")
	assert.NotContains(t, doc, "<b>")
	assert.NotContains(t, doc, "<img")
	assert.Contains(t, doc, "&lt;script&gt;")
	assert.Contains(t, doc, "&amp; more")
	assert.Contains(t, doc, "it&#39;s fine")
}

func TestBuildTranscript_SelfContainedAndOrdered(t *testing.T) {
	conv, msgs := transcriptFixture()
	doc, err := BuildTranscript(conv, msgs, "")
	require.NoError(t, err)

	assert.NotContains(t, doc, "http://")
	assert.NotContains(t, doc, "https://")
	assert.NotContains(t, doc, "<link")
	assert.NotContains(t, doc, "Report reason")

	first := strings.Index(doc, "is it")
	second := strings.Index(doc, "&lt;script")
	third := strings.Index(doc, "it&#39;s fine")
	assert.True(t, first < second && second < third)

	assert.Contains(t, doc, "buyer, seller")
	assert.Contains(t, doc, "2026-02-03T10:00:00Z")
	assert.Contains(t, doc, "<strong>Ended:</strong> 2026-02-03T10:03:00Z")
}

func TestBuildTranscript_EndedFallsBack(t *testing.T) {
	conv, _ := transcriptFixture()

	doc, err := BuildTranscript(conv, nil, "")
	require.NoError(t, err)
	assert.Contains(t, doc, "<strong>Ended:</strong> 2026-02-03T11:00:00Z")

	conv.LastActiveAt = time.Time{}
	doc, err = BuildTranscript(conv, nil, "")
	require.NoError(t, err)
	assert.Contains(t, doc, "<strong>Ended:</strong> 2026-02-03T10:00:00Z")
}
