// Package interpreter разбирает ответы моделей: кадры раскадровки из JSON
// и ссылки на медиа из свободного текста. Ошибки разбора не фатальны:
// результатом становится пустой список или пустое Media.
package interpreter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"script-studio/internal/model"
)

var (
	shotScaleKeys      = []string{"shotScale", "scale", "shotSize", "shot_scale"}
	cameraMovementKeys = []string{"cameraMovement", "camera", "movement", "camera_movement"}
	durationKeys       = []string{"duration", "durationLabel", "length"}
	dialogueKeys       = []string{"dialogue", "voiceOver", "voiceover", "line", "dialog"}
	promptKeys         = []string{"prompt", "generatedPrompt", "imagePrompt", "generated_prompt"}
	notesKeys          = []string{"notes", "note", "remarks"}
	sceneTitleKeys     = []string{"sceneTitle", "title", "scene_title"}
	sceneSummaryKeys   = []string{"sceneSummary", "summary", "scene_summary"}
)

// ParseEntries извлекает кадры из ответа модели. Сначала пробуется плоская форма
// {"entries":[...]}, затем вложенная {"scenes":[{"entries":[...]}]}.
// Номера кадров всегда перенумеровываются подряд начиная с next в порядке документа;
// номера из ответа модели игнорируются. Любая ошибка разбора даёт пустой список.
func ParseEntries(raw string, next int) []model.StoryboardEntry {
	if next < 1 {
		next = 1
	}
	entries, err := parseEnvelope(extractJSONObject(raw))
	if err != nil {
		return []model.StoryboardEntry{}
	}
	for i := range entries {
		entries[i].ShotNumber = next + i
	}
	return entries
}

func parseEnvelope(payload string) ([]model.StoryboardEntry, error) {
	if payload == "" {
		return nil, fmt.Errorf("no json object found")
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &top); err != nil {
		return nil, err
	}

	// плоская форма с неверным типом не мешает попробовать вложенную
	var flatErr error
	flatEmpty := false
	if raw, ok := present(top, "entries"); ok {
		flat, err := decodeEntries(raw, sceneInfo{})
		switch {
		case err != nil:
			flatErr = err
		case len(flat) > 0:
			return flat, nil
		default:
			flatEmpty = true
		}
	}

	if raw, ok := present(top, "scenes"); ok {
		nested, err := decodeScenes(raw)
		if err == nil {
			return nested, nil
		}
		if !flatEmpty {
			return nil, err
		}
	}

	if flatEmpty {
		return []model.StoryboardEntry{}, nil
	}
	if flatErr != nil {
		return nil, flatErr
	}
	return nil, fmt.Errorf("unexpected envelope keys")
}

type sceneInfo struct {
	title   string
	summary string
}

func decodeScenes(raw json.RawMessage) ([]model.StoryboardEntry, error) {
	var scenes []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &scenes); err != nil {
		return nil, err
	}
	out := []model.StoryboardEntry{}
	for _, scene := range scenes {
		if scene == nil {
			return nil, fmt.Errorf("scene is null")
		}
		title, err := pick(scene, sceneTitleKeys)
		if err != nil {
			return nil, err
		}
		summary, err := pick(scene, sceneSummaryKeys)
		if err != nil {
			return nil, err
		}
		rawEntries, ok := present(scene, "entries")
		if !ok {
			continue
		}
		entries, err := decodeEntries(rawEntries, sceneInfo{title: title, summary: summary})
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func decodeEntries(raw json.RawMessage, scene sceneInfo) ([]model.StoryboardEntry, error) {
	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]model.StoryboardEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			return nil, fmt.Errorf("entry is null")
		}
		entry, err := decodeEntry(item, scene)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeEntry(item map[string]json.RawMessage, scene sceneInfo) (model.StoryboardEntry, error) {
	var e model.StoryboardEntry
	targets := []struct {
		dst  *string
		keys []string
	}{
		{&e.ShotScale, shotScaleKeys},
		{&e.CameraMovement, cameraMovementKeys},
		{&e.Duration, durationKeys},
		{&e.Dialogue, dialogueKeys},
		{&e.GeneratedPrompt, promptKeys},
		{&e.Notes, notesKeys},
		{&e.SceneTitle, sceneTitleKeys},
		{&e.SceneSummary, sceneSummaryKeys},
	}
	for _, t := range targets {
		v, err := pick(item, t.keys)
		if err != nil {
			return model.StoryboardEntry{}, err
		}
		*t.dst = v
	}
	if e.SceneTitle == "" {
		e.SceneTitle = scene.title
	}
	if e.SceneSummary == "" {
		e.SceneSummary = scene.summary
	}
	return e, nil
}

// pick возвращает значение первого присутствующего ключа из списка синонимов.
func pick(obj map[string]json.RawMessage, keys []string) (string, error) {
	for _, k := range keys {
		raw, ok := present(obj, k)
		if !ok {
			continue
		}
		var s flexString
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("field %q: %w", k, err)
		}
		return strings.TrimSpace(string(s)), nil
	}
	return "", nil
}

func present(obj map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := obj[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

// flexString принимает строку, число или логическое значение.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty value")
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	case 't', 'f':
		var v bool
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexString(fmt.Sprintf("%t", v))
	case 'n':
		*f = ""
	case '{', '[':
		return fmt.Errorf("unexpected %c for text field", b[0])
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}

// extractJSONObject вырезает JSON-объект из ответа модели, который может быть
// обёрнут в markdown-блок или окружён текстом.
func extractJSONObject(s string) string {
	raw := strings.TrimSpace(stripCodeFence(s))
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	candidate := raw[start : end+1]
	if json.Valid([]byte(candidate)) {
		return candidate
	}

	// за объектом может идти текст с фигурными скобками: берём первое значение потока
	dec := json.NewDecoder(strings.NewReader(raw[start:]))
	var first json.RawMessage
	if err := dec.Decode(&first); err != nil {
		return ""
	}
	return string(first)
}

func stripCodeFence(s string) string {
	open := strings.Index(s, "```")
	if open < 0 {
		return s
	}
	rest := s[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
