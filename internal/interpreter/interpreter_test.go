package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shotNumbers(t *testing.T, raw string, next int) []int {
	t.Helper()
	entries := ParseEntries(raw, next)
	out := make([]int, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ShotNumber)
	}
	return out
}

func TestParseEntries_FlatShape(t *testing.T) {
	entries := ParseEntries(`{"entries":[{"shotNumber":1,"cameraMovement":"dolly"}]}`, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].ShotNumber)
	assert.Equal(t, "dolly", entries[0].CameraMovement)
}

func TestParseEntries_FlatShapeRenumbersFromNext(t *testing.T) {
	raw := `{"entries":[
		{"shotNumber":9,"shotScale":"Wide","duration":3,"dialogue":"Hi","prompt":"harbor at dusk"},
		{"shotScale":"Close"},
		{"shotNumber":"abc","notes":"handheld"}
	]}`
	assert.Equal(t, []int{5, 6, 7}, shotNumbers(t, raw, 5))

	entries := ParseEntries(raw, 5)
	assert.Equal(t, "Wide", entries[0].ShotScale)
	assert.Equal(t, "3", entries[0].Duration, "numeric durations become labels")
	assert.Equal(t, "harbor at dusk", entries[0].GeneratedPrompt)
	assert.Equal(t, "handheld", entries[2].Notes)
}

func TestParseEntries_NestedShape(t *testing.T) {
	raw := `{"scenes":[{"sceneTitle":"X","entries":[{"shot":0},{"shot":2}]}]}`
	entries := ParseEntries(raw, 3)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries[0].ShotNumber)
	assert.Equal(t, 4, entries[1].ShotNumber)
	assert.Equal(t, "X", entries[0].SceneTitle)
}

func TestParseEntries_NestedShapeAcrossScenes(t *testing.T) {
	raw := `{"scenes":[
		{"sceneTitle":"Dock","sceneSummary":"Arrival","entries":[{"shotNumber":7},{"shotNumber":7}]},
		{"sceneTitle":"Roof","entries":[]},
		{"sceneTitle":"Street","entries":[{"shotNumber":1,"sceneTitle":"Street, later"}]}
	]}`
	entries := ParseEntries(raw, 10)
	require.Len(t, entries, 3)
	assert.Equal(t, []int{10, 11, 12}, []int{entries[0].ShotNumber, entries[1].ShotNumber, entries[2].ShotNumber})
	assert.Equal(t, "Arrival", entries[0].SceneSummary)
	assert.Equal(t, "Street, later", entries[2].SceneTitle)
}

func TestParseEntries_FallsBackToNestedWhenFlatHasWrongType(t *testing.T) {
	raw := `{"entries":"n/a","scenes":[{"sceneTitle":"X","entries":[{"shot":5},{"shot":9}]}]}`
	assert.Equal(t, []int{3, 4}, shotNumbers(t, raw, 3))

	entries := ParseEntries(`{"entries":[],"scenes":[{"sceneTitle":"Y","entries":[{"camera":"tilt"}]}]}`, 1)
	require.Len(t, entries, 1)
	assert.Equal(t, "Y", entries[0].SceneTitle)
	assert.Equal(t, "tilt", entries[0].CameraMovement)

	assert.Empty(t, ParseEntries(`{"entries":"n/a","scenes":"none"}`, 1))
}

func TestParseEntries_ToleratesFencesAndProse(t *testing.T) {
	raw := "Here you go:\n```json\n{\"entries\":[{\"camera\":\"pan\"}]}\n```\nEnjoy {braces} in prose."
	entries := ParseEntries(raw, 0)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].ShotNumber, "next below one starts at one")
	assert.Equal(t, "pan", entries[0].CameraMovement)
}

func TestParseEntries_MalformedReturnsEmpty(t *testing.T) {
	inputs := map[string]string{
		"empty":           "",
		"plain text":      "no json here",
		"truncated":       `{"entries":[{"shotScale":"Wide"}`,
		"unknown keys":    `{"shots":[{"shotScale":"Wide"}]}`,
		"entries object":  `{"entries":{"shotScale":"Wide"}}`,
		"bad entry type":  `{"entries":[{"shotScale":"Wide"},"oops"]}`,
		"object in field": `{"entries":[{"shotScale":"Wide"},{"dialogue":{"text":"x"}}]}`,
		"scenes string":   `{"scenes":"none"}`,
	}
	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			got := ParseEntries(raw, 1)
			assert.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestExtractMedia_DataURIBeforeURLs(t *testing.T) {
	text := "![ref](https://cdn.example.com/a.png) and inline data:image/png;base64,QUJD end"
	m := ExtractMedia(text, Media{})
	assert.Equal(t, "QUJD", m.ImageData)
	assert.Equal(t, "image/png", m.ImageMIME)
	assert.Empty(t, m.ImageURL)
	assert.Equal(t, []byte("ABC"), DecodeImage(m))
}

func TestExtractMedia_Priority(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		explicit Media
		want     Media
	}{
		{
			name:     "explicit wins",
			text:     "data:image/png;base64,QUJD",
			explicit: Media{ImageURL: "https://explicit/x.png", VideoURL: "https://explicit/v.mp4"},
			want:     Media{ImageURL: "https://explicit/x.png", VideoURL: "https://explicit/v.mp4"},
		},
		{
			name: "markdown before bare",
			text: "see https://cdn.example.com/bare.jpg or ![shot](https://cdn.example.com/md.webp)",
			want: Media{ImageURL: "https://cdn.example.com/md.webp"},
		},
		{
			name: "markdown mp4 is not an image",
			text: "![clip](https://cdn.example.com/clip.mp4)",
			want: Media{VideoURL: "https://cdn.example.com/clip.mp4"},
		},
		{
			name: "bare image with query and punctuation",
			text: "Result: https://cdn.example.com/out.JPEG?sig=1.",
			want: Media{ImageURL: "https://cdn.example.com/out.JPEG?sig=1"},
		},
		{
			name: "image and video together",
			text: "poster https://x.io/p.png video https://x.io/v.mp4",
			want: Media{ImageURL: "https://x.io/p.png", VideoURL: "https://x.io/v.mp4"},
		},
		{
			name: "nothing found",
			text: "Just words and https://example.com/page.html",
			want: Media{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractMedia(tt.text, tt.explicit))
		})
	}
}

func TestDecodeImage_InvalidPayload(t *testing.T) {
	assert.Nil(t, DecodeImage(Media{ImageData: "###"}))
	assert.Nil(t, DecodeImage(Media{}))
}
