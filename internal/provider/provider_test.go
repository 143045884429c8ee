package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"script-studio/internal/fields"
	"script-studio/internal/model"
)

func relaySnapshot(baseURL string) model.RelaySnapshot {
	return model.RelaySnapshot{Provider: "openai", BaseURL: baseURL, APIKey: "sk-test", Model: "relay-model"}
}

func job(prompt string) model.JobRequest {
	return model.JobRequest{
		ID:      "job-1",
		Action:  "conversation",
		Channel: model.ChannelText,
		Fields: map[string]string{
			fields.KeyPrompt:       prompt,
			fields.KeySystemPrompt: "You are a script editor.",
		},
	}
}

func stubCounter(_ string, text string) int { return len(strings.Fields(text)) }

func TestComposeInput(t *testing.T) {
	in := ComposeInput(map[string]string{
		fields.KeyPrompt:            "Write shots",
		fields.KeySystemPrompt:      "System template",
		fields.KeyResponseFormat:    "JSON only",
		fields.KeyModule:            "storyboard",
		fields.KeySceneContext:      "Scene block",
		fields.KeyEpisodeContext:    "Episode block",
		fields.KeyStatus:            "Storyboard · Pilot",
		"tone":                      "noir",
		"blank":                     "   ",
		fields.KeyStoryboardContext: "",
	})

	assert.Equal(t, "System template\n\nJSON only", in.System)
	assert.Equal(t,
		"## Episode\nEpisode block\n\n## Scene\nScene block\n\n## Status\nStoryboard · Pilot\n\n## tone\nnoir\n\nWrite shots",
		in.User)
	assert.NotContains(t, in.User, "storyboard\n")
	assert.Equal(t, in.System+"\n\n"+in.User, in.Resolved())
}

func TestComposeInput_PromptOnly(t *testing.T) {
	in := ComposeInput(map[string]string{fields.KeyPrompt: "hello"})
	assert.Empty(t, in.System)
	assert.Equal(t, "hello", in.User)
	assert.Equal(t, "hello", in.Resolved())
}

func TestAPIBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://relay.example.com":      "https://relay.example.com/v1",
		"https://relay.example.com/":     "https://relay.example.com/v1",
		"https://relay.example.com/v1":   "https://relay.example.com/v1",
		" https://relay.example.com/v1/": "https://relay.example.com/v1",
	}
	for in, want := range cases {
		assert.Equal(t, want, APIBaseURL(in), in)
	}
}

func TestOpenAIProvider_Submit(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","model":"relay-model-2025","choices":[{"index":0,"message":{"role":"assistant","content":"Hello there"}}],"usage":{"prompt_tokens":12,"completion_tokens":3,"total_tokens":15}}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(relaySnapshot(srv.URL), model.ChannelText, srv.Client(), zap.NewNop())
	res, err := p.Submit(context.Background(), job("Say hello"))
	require.NoError(t, err)

	assert.Equal(t, "Hello there", res.Text)
	assert.Equal(t, "relay-model-2025", res.Metadata.Model)
	assert.Equal(t, "You are a script editor.\n\nSay hello", res.Metadata.Prompt)
	assert.Equal(t, model.Usage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15}, res.Metadata.Usage)

	assert.Equal(t, "relay-model", gotBody["model"])
	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Say hello", msgs[1].(map[string]any)["content"])
}

func TestOpenAIProvider_SubmitErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		kind   model.ProviderErrorKind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, model.ProviderErrorAuth},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, model.ProviderErrorQuota},
		{"server error", http.StatusBadGateway, `<html>bad gateway</html>`, model.ProviderErrorStatus},
		{"empty choices", http.StatusOK, `{"id":"1","choices":[]}`, model.ProviderErrorMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			p := NewOpenAIProvider(relaySnapshot(srv.URL), model.ChannelText, srv.Client(), zap.NewNop())
			_, err := p.Submit(context.Background(), job("x"))
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrProviderFailed)

			var pe *model.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.kind, pe.Kind)
			if tc.status != http.StatusOK {
				assert.Equal(t, tc.status, pe.StatusCode)
			}
		})
	}
}

func TestOpenAIProvider_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p := NewOpenAIProvider(relaySnapshot(url), model.ChannelText, nil, zap.NewNop())
	_, err := p.Submit(context.Background(), job("x"))
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderErrorNetwork, pe.Kind)
}

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["stream"])

		w.Header().Set("Content-Type", "text/event-stream")
		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
			if flusher != nil {
				flusher.Flush()
			}
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIProvider_SubmitStream(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"1","model":"relay-model","choices":[{"index":0,"delta":{"role":"assistant","content":"Once "}}]}`,
		`{"id":"1","model":"relay-model","choices":[{"index":0,"delta":{"content":""}}]}`,
		`{"id":"1","model":"relay-model","choices":[{"index":0,"delta":{"content":"upon"}}]}`,
		`{"id":"1","model":"relay-model","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`,
	})
	defer srv.Close()

	p := NewOpenAIProvider(relaySnapshot(srv.URL), model.ChannelText, srv.Client(), zap.NewNop())
	var deltas []string
	res, err := p.SubmitStream(context.Background(), job("story"), func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Once ", "upon"}, deltas)
	assert.Equal(t, "Once upon", res.Text)
	assert.Equal(t, 11, res.Metadata.Usage.TotalTokens)
	assert.False(t, res.Metadata.Usage.Estimated)
}

func TestOpenAIProvider_SubmitStreamEstimatesUsage(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"1","choices":[{"index":0,"delta":{"content":"two words"}}]}`,
	})
	defer srv.Close()

	p := NewOpenAIProvider(relaySnapshot(srv.URL), model.ChannelText, srv.Client(), zap.NewNop())
	p.countTokens = stubCounter
	res, err := p.SubmitStream(context.Background(), job("one"), func(string) error { return nil })
	require.NoError(t, err)
	assert.True(t, res.Metadata.Usage.Estimated)
	assert.Equal(t, 2, res.Metadata.Usage.CompletionTokens)
	assert.Equal(t, res.Metadata.Usage.PromptTokens+2, res.Metadata.Usage.TotalTokens)
	assert.Equal(t, "relay-model", res.Metadata.Model)
}

func TestOpenAIProvider_SubmitStreamConsumerError(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"1","choices":[{"index":0,"delta":{"content":"a"}}]}`,
		`{"id":"1","choices":[{"index":0,"delta":{"content":"b"}}]}`,
	})
	defer srv.Close()

	stop := errors.New("consumer gone")
	p := NewOpenAIProvider(relaySnapshot(srv.URL), model.ChannelText, srv.Client(), zap.NewNop())
	calls := 0
	_, err := p.SubmitStream(context.Background(), job("x"), func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestOpenAIProvider_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewOpenAIProvider(relaySnapshot(srv.URL), model.ChannelText, srv.Client(), zap.NewNop())
	_, err := p.Submit(ctx, job("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOllamaProvider_Submit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req["model"])
		assert.Equal(t, false, req["stream"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"model":"llama3","message":{"role":"assistant","content":"Hi!"},"done":true,"done_reason":"stop","prompt_eval_count":5,"eval_count":2}`)
	}))
	defer srv.Close()

	relay := model.RelaySnapshot{Provider: "ollama", BaseURL: srv.URL + "/v1", APIKey: "k", Model: "llama3"}
	p, err := NewOllamaProvider(relay, model.ChannelText, srv.Client(), zap.NewNop())
	require.NoError(t, err)

	res, err := p.Submit(context.Background(), job("hi"))
	require.NoError(t, err)
	assert.Equal(t, "Hi!", res.Text)
	assert.Equal(t, model.Usage{PromptTokens: 5, CompletionTokens: 2, TotalTokens: 7}, res.Metadata.Usage)
	assert.Equal(t, "llama3", res.Metadata.Model)
}

func TestOllamaProvider_SubmitStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []string{
			`{"model":"llama3","message":{"role":"assistant","content":"Fade "},"done":false}`,
			`{"model":"llama3","message":{"role":"assistant","content":"in."},"done":false}`,
			`{"model":"llama3","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":2}`,
		}
		for _, l := range lines {
			_, _ = io.WriteString(w, l+"\n")
		}
	}))
	defer srv.Close()

	relay := model.RelaySnapshot{Provider: "ollama", BaseURL: srv.URL, APIKey: "k", Model: "llama3"}
	p, err := NewOllamaProvider(relay, model.ChannelText, srv.Client(), zap.NewNop())
	require.NoError(t, err)

	var deltas []string
	res, err := p.SubmitStream(context.Background(), job("x"), func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Fade ", "in."}, deltas)
	assert.Equal(t, "Fade in.", res.Text)
	assert.Equal(t, 6, res.Metadata.Usage.TotalTokens)
}

func TestOllamaProvider_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":"too many requests"}`)
	}))
	defer srv.Close()

	relay := model.RelaySnapshot{Provider: "ollama", BaseURL: srv.URL, APIKey: "k", Model: "llama3"}
	p, err := NewOllamaProvider(relay, model.ChannelText, srv.Client(), zap.NewNop())
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), job("x"))
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderErrorQuota, pe.Kind)
}

func TestDiscoverer_ListModels(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"zeta"},{"id":"alpha"},{"id":"mid"}]}`)
	}))
	defer srv.Close()

	d := NewDiscoverer(DiscoveryConfig{}, srv.Client(), zap.NewNop())
	relay := relaySnapshot(srv.URL + "/")

	ids, err := d.ListModels(context.Background(), relay)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, ids)

	ids[0] = "mutated"
	again, err := d.ListModels(context.Background(), relay)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, again)
	assert.Equal(t, int32(1), hits.Load(), "second call must be served from cache")

	_, err = d.Refresh(context.Background(), relay)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())

	other := relay
	other.APIKey = "sk-other"
	_, err = d.ListModels(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load(), "different key must not share cache entry")
}

func TestDiscoverer_ConcurrentMissesShareOneRequest(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"object":"list","data":[{"id":"only"}]}`)
	}))
	defer srv.Close()

	d := NewDiscoverer(DiscoveryConfig{}, srv.Client(), zap.NewNop())
	relay := relaySnapshot(srv.URL)

	var wg sync.WaitGroup
	results := make([][]string, 6)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids, err := d.ListModels(context.Background(), relay)
			assert.NoError(t, err)
			results[i] = ids
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, ids := range results {
		assert.Equal(t, []string{"only"}, ids)
	}
}

func TestDiscoverer_Errors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"no"}}`)
		}))
		defer srv.Close()

		d := NewDiscoverer(DiscoveryConfig{}, srv.Client(), zap.NewNop())
		_, err := d.ListModels(context.Background(), relaySnapshot(srv.URL))
		var pe *model.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, model.ProviderErrorAuth, pe.Kind)
	})

	t.Run("undecodable body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `not json`)
		}))
		defer srv.Close()

		d := NewDiscoverer(DiscoveryConfig{}, srv.Client(), zap.NewNop())
		_, err := d.ListModels(context.Background(), relaySnapshot(srv.URL))
		var pe *model.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, model.ProviderErrorMalformed, pe.Kind)
	})

	t.Run("missing base url", func(t *testing.T) {
		d := NewDiscoverer(DiscoveryConfig{}, nil, zap.NewNop())
		_, err := d.ListModels(context.Background(), model.RelaySnapshot{})
		assert.ErrorIs(t, err, model.ErrNotConfigured)
	})
}

func TestDiscoverer_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"models":[{"name":"qwen2"},{"name":"llama3"}]}`)
	}))
	defer srv.Close()

	d := NewDiscoverer(DiscoveryConfig{}, srv.Client(), zap.NewNop())
	ids, err := d.ListModels(context.Background(), model.RelaySnapshot{Provider: "ollama", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "qwen2"}, ids)
}

func TestFactory(t *testing.T) {
	f := NewFactory(OfficialConfig{TextModel: "gemini-text", ImageModel: "gemini-image"}, nil, zap.NewNop())
	ctx := context.Background()

	relay := model.RouteResolution{Route: model.RouteRelay, Relay: &model.RelaySnapshot{
		Provider: "openai", BaseURL: "https://relay.example.com", APIKey: "k", Model: "m",
	}}
	tp, err := f.Text(ctx, relay, "")
	require.NoError(t, err)
	assert.IsType(t, &OpenAIProvider{}, tp)

	relay.Relay.Provider = "ollama"
	ip, err := f.Image(ctx, relay, "")
	require.NoError(t, err)
	assert.IsType(t, &OllamaProvider{}, ip)

	_, err = f.Text(ctx, model.RouteResolution{Route: model.RouteRelay}, "")
	assert.ErrorIs(t, err, model.ErrNotConfigured)

	official := model.RouteResolution{Route: model.RouteOfficial}
	tp, err = f.Text(ctx, official, "")
	assert.ErrorIs(t, err, model.ErrNotConfigured)
	assert.Nil(t, tp)

	tp, err = f.Text(ctx, official, "official-key")
	require.NoError(t, err)
	gp, ok := tp.(*GeminiProvider)
	require.True(t, ok)
	assert.Equal(t, "gemini-text", gp.labels.model)
	assert.Equal(t, model.RouteOfficial, gp.labels.route)

	ip, err = f.Image(ctx, official, "official-key")
	require.NoError(t, err)
	assert.Equal(t, "gemini-image", ip.(*GeminiProvider).labels.model)
}

func TestReadParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking...", Thought: true},
				{Text: "Here is "},
				{InlineData: &genai.Blob{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}},
				{Text: "your frame."},
				{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: []byte{1}}},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 4,
			TotalTokenCount:      14,
		},
	}

	text, image := readParts(resp)
	assert.Equal(t, "Here is your frame.", text)
	require.NotNil(t, image)
	assert.Equal(t, "image/png", image.MIMEType)
	assert.Equal(t, "iVBORw==", image.Data)
	assert.Equal(t, model.Usage{PromptTokens: 10, CompletionTokens: 4, TotalTokens: 14}, geminiUsage(resp))

	text, image = readParts(&genai.GenerateContentResponse{})
	assert.Empty(t, text)
	assert.Nil(t, image)
	assert.Equal(t, model.Usage{}, geminiUsage(nil))
}

func TestProviderError_Classification(t *testing.T) {
	ctx := context.Background()

	err := providerError(ctx, "gemini", genai.APIError{Code: 429, Message: "quota"})
	var pe *model.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderErrorQuota, pe.Kind)

	err = providerError(ctx, "gemini", genai.APIError{Code: 403})
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, model.ProviderErrorAuth, pe.Kind)

	err = providerError(ctx, "x", fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, errors.As(err, &pe))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, providerError(cancelled, "x", errors.New("read: connection reset")), context.Canceled)

	assert.NoError(t, providerError(ctx, "x", nil))
}

func TestCountTokens(t *testing.T) {
	assert.Zero(t, CountTokens("gpt-4o", ""))
	usage := estimateUsage(stubCounter, "m", "a b c", "d e")
	assert.Equal(t, model.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5, Estimated: true}, usage)
}
