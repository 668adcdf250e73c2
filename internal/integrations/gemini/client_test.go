package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
	calls int
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.parts = parts
	return f.resp, f.err
}

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestNewClient_EmptyKey(t *testing.T) {
	_, err := NewClient(context.Background(), " ", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "must not be empty")
}

func TestComplete_HappyPath(t *testing.T) {
	m := &fakeModel{resp: textResponse(genai.Text("Sure, "), genai.Text("I can help."))}
	c := &Client{model: m, name: DefaultModel}

	out, err := c.Complete(context.Background(), "Sys\n\nConversation:\nUser: hi\n\nAssistant:")
	require.NoError(t, err)
	require.Equal(t, "Sure, I can help.", out)
	require.Equal(t, 1, m.calls)
	require.Len(t, m.parts, 1)
	require.Equal(t, genai.Text("Sys\n\nConversation:\nUser: hi\n\nAssistant:"), m.parts[0])
}

func TestComplete_UpstreamError(t *testing.T) {
	c := &Client{model: &fakeModel{err: errors.New("PERMISSION_DENIED")}}
	_, err := c.Complete(context.Background(), "prompt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "generate content")
	require.Contains(t, err.Error(), "PERMISSION_DENIED")
}

func TestResponseText_Malformed(t *testing.T) {
	cases := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{name: "nil", resp: nil, want: "no candidates"},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, want: "no candidates"},
		{name: "blocked", resp: &genai.GenerateContentResponse{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}}, want: "prompt blocked"},
		{name: "no content", resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}, want: "no content"},
		{name: "no text", resp: textResponse(genai.Blob{MIMEType: "image/png", Data: []byte{1}}), want: "no text parts"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := responseText(tc.resp)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestClose_WithoutCloser(t *testing.T) {
	require.NoError(t, (&Client{}).Close())
}
