package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewActionRequest_CopiesMutableInputs(t *testing.T) {
	fields := map[string]string{"tone": "noir"}
	refs := []string{"asset-1"}

	req, err := NewActionRequest(ActionRequestParams{
		Kind:      ActionConversation,
		Prompt:    "Write a logline",
		Channel:   ChannelText,
		Fields:    fields,
		AssetRefs: refs,
	})
	require.NoError(t, err)

	fields["tone"] = "comedy"
	refs[0] = "asset-2"
	assert.Equal(t, "noir", req.Fields()["tone"])
	assert.Equal(t, []string{"asset-1"}, req.AssetRefs())

	got := req.Fields()
	got["tone"] = "changed"
	assert.Equal(t, "noir", req.Fields()["tone"])

	assert.Equal(t, ContextGeneral, req.Context().Kind(), "nil context defaults to general")
}

func TestNewActionRequest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params ActionRequestParams
	}{
		{"unknown kind", ActionRequestParams{Kind: "poetry", Prompt: "x", Channel: ChannelText}},
		{"unknown channel", ActionRequestParams{Kind: ActionImaging, Prompt: "x", Channel: "audio"}},
		{"blank prompt", ActionRequestParams{Kind: ActionImaging, Prompt: "   ", Channel: ChannelImage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewActionRequest(tt.params)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestContextConstructors_RequireProject(t *testing.T) {
	_, err := NewStoryboardContext(ProjectInfo{}, EpisodeInfo{Label: "Ep. 1"}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewScriptProjectContext(ProjectInfo{Title: "No id"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	ep, err := NewScriptEpisodeContext(nil, EpisodeInfo{Label: "Ep. 1"})
	require.NoError(t, err)
	assert.Nil(t, ep.Project)

	project := &ProjectInfo{ID: "p1", Title: "Harbor"}
	ep, err = NewScriptEpisodeContext(project, EpisodeInfo{Label: "Ep. 1"})
	require.NoError(t, err)
	project.Title = "Changed"
	assert.Equal(t, "Harbor", ep.Project.Title)
}

func TestMergeFields_LastWriteWins(t *testing.T) {
	merged := MergeFields(
		map[string]string{"a": "1", "b": "2"},
		map[string]string{"b": "3"},
		nil,
	)
	assert.Equal(t, map[string]string{"a": "1", "b": "3"}, merged)
}

func TestRelaySettings_Complete(t *testing.T) {
	full := RelaySettings{Enabled: true, BaseURL: "https://relay", APIKey: "k", Model: "m"}
	assert.True(t, full.Complete())

	disabled := full
	disabled.Enabled = false
	assert.False(t, disabled.Complete())

	blankModel := full
	blankModel.Model = "  "
	assert.False(t, blankModel.Complete())
}

func TestRouteSettings_VideoUsesImageRelay(t *testing.T) {
	s := RouteSettings{
		Text:  RelaySettings{Model: "text-model"},
		Image: RelaySettings{Model: "image-model"},
	}
	assert.Equal(t, "image-model", s.Relay(ChannelVideo).Model)
	assert.Equal(t, "text-model", s.Relay(ChannelText).Model)
}

func TestProviderError_IsProviderFailed(t *testing.T) {
	inner := errors.New("boom")
	err := error(&ProviderError{Kind: ProviderErrorQuota, Provider: "relay", StatusCode: 429, Err: inner})

	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "status 429")

	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, ProviderErrorQuota, pErr.Kind)
}
