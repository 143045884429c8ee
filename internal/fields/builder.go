// Package fields превращает контекст действия в плоскую карту полей для провайдера.
package fields

import (
	"fmt"
	"strings"

	"script-studio/internal/model"
)

// Ключи карты полей.
const (
	KeyPrompt            = "prompt"
	KeyStatus            = "status"
	KeyModule            = "module"
	KeySystemPrompt      = "systemPrompt"
	KeyEpisodeContext    = "episodeContext"
	KeySceneContext      = "sceneContext"
	KeyStoryboardContext = "storyboardContext"
	KeyProjectContext    = "projectContext"
	KeyResponseFormat    = "responseFormat"
)

const (
	EpisodeBodyLimit = 6000
	SceneBodyLimit   = 3000
	MaxSummaryShots  = 12

	TruncationMarker = "…[truncated]"
	tagSeparator     = " / "
	summarySeparator = " · "
)

// ResponseFormat - инструкция о форме JSON для операций с раскадровкой.
const ResponseFormat = `Respond with JSON only, no prose. For shots of a single scene use ` +
	`{"entries":[{"shotNumber":1,"shotScale":"","cameraMovement":"","duration":"","dialogue":"","prompt":"","notes":""}]}. ` +
	`When shots span several scenes use ` +
	`{"scenes":[{"sceneTitle":"","sceneSummary":"","entries":[{"shotNumber":1,"shotScale":"","cameraMovement":"","duration":"","dialogue":"","prompt":"","notes":""}]}]}.`

// Input - данные для Build.
type Input struct {
	Prompt       string
	Context      model.ContextVariant
	Module       string
	SystemPrompt string
	StatusLabel  string
}

// Build строит карту полей. Ни одно значение в результате не пустое после TrimSpace.
func Build(in Input) map[string]string {
	out := make(map[string]string)
	ctxVariant := in.Context
	if ctxVariant == nil {
		ctxVariant = model.GeneralContext{}
	}

	put(out, KeyPrompt, in.Prompt)
	put(out, KeyModule, in.Module)
	put(out, KeySystemPrompt, strings.TrimSpace(in.SystemPrompt))
	put(out, KeyStatus, joinNonBlank(summarySeparator, in.StatusLabel, Summary(ctxVariant)))

	switch c := ctxVariant.(type) {
	case model.ScriptEpisodeContext:
		put(out, KeyEpisodeContext, episodeBlock(c.Project, c.Episode))
	case model.StoryboardContext:
		project := c.Project
		put(out, KeyEpisodeContext, episodeBlock(&project, c.Episode))
		put(out, KeySceneContext, sceneBlock(c.Scene, c.SceneSnapshot))
		if c.Workspace != nil && len(c.Workspace.Shots) > 0 {
			put(out, KeyStoryboardContext, storyboardBlock(c.Workspace.Shots))
		}
		out[KeyResponseFormat] = ResponseFormat
	case model.ScriptProjectContext:
		put(out, KeyProjectContext, projectBlock(c.Project))
	}
	return out
}

// Merge накладывает переопределения поверх полей. Пустое переопределение
// пропускается, базовое значение остаётся.
func Merge(base map[string]string, overrides map[string]string) map[string]string {
	kept := make(map[string]string, len(overrides))
	for k, v := range overrides {
		put(kept, k, v)
	}
	out := make(map[string]string, len(base)+len(kept))
	for k, v := range model.MergeFields(base, kept) {
		put(out, k, v)
	}
	return out
}

// Summary - короткое описание контекста для статусной строки и аудита.
func Summary(c model.ContextVariant) string {
	switch v := c.(type) {
	case model.ScriptEpisodeContext:
		title := ""
		if v.Project != nil {
			title = v.Project.Title
		}
		return joinNonBlank(summarySeparator, title, v.Episode.Label)
	case model.StoryboardContext:
		scene := ""
		if v.Scene != nil {
			scene = v.Scene.Title
		} else if v.SceneSnapshot != nil {
			scene = v.SceneSnapshot.Title
		}
		if strings.TrimSpace(scene) != "" {
			scene = "Scene: " + scene
		}
		return joinNonBlank(summarySeparator, "Storyboard", v.Project.Title, v.Episode.Label, scene)
	case model.ScriptProjectContext:
		return joinNonBlank(summarySeparator, "Project", v.Project.Title)
	default:
		return "General"
	}
}

func episodeBlock(project *model.ProjectInfo, ep model.EpisodeInfo) string {
	var lines []string
	if project != nil {
		lines = appendLine(lines, "Project", project.Title)
	}
	lines = appendLine(lines, "Episode", ep.Label)
	lines = appendLine(lines, "Synopsis", ep.Synopsis)
	if strings.TrimSpace(ep.Body) != "" {
		lines = append(lines, "Script:\n"+Truncate(ep.Body, EpisodeBodyLimit))
	}
	return strings.Join(lines, "\n")
}

func sceneBlock(scene *model.SceneInfo, snapshot *model.SceneSnapshot) string {
	var title, summary, body string
	var order *int
	switch {
	case scene != nil:
		title, order, summary, body = scene.Title, scene.Order, scene.Summary, scene.Body
	case snapshot != nil:
		title, order, summary, body = snapshot.Title, snapshot.Order, snapshot.Summary, snapshot.Body
	default:
		return ""
	}

	var lines []string
	lines = appendLine(lines, "Scene", title)
	if order != nil {
		lines = append(lines, fmt.Sprintf("Order: %d", *order))
	}
	lines = appendLine(lines, "Summary", summary)
	if strings.TrimSpace(body) != "" {
		lines = append(lines, "Scene text:\n"+Truncate(body, SceneBodyLimit))
	}
	return strings.Join(lines, "\n")
}

func storyboardBlock(shots []model.WorkspaceShot) string {
	shown := shots
	if len(shown) > MaxSummaryShots {
		shown = shown[:MaxSummaryShots]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current storyboard (%d shots):", len(shots))
	for _, s := range shown {
		b.WriteString("\n")
		header := fmt.Sprintf("#%d", s.ShotNumber)
		if title := strings.TrimSpace(s.SceneTitle); title != "" {
			header += " [" + title + "]"
		}
		if tags := joinNonBlank(tagSeparator, s.ShotScale, s.CameraMovement, s.Duration); tags != "" {
			header += " " + tags
		}
		b.WriteString(header)
		for _, line := range appendLine(nil, "Image", s.ImageDescription) {
			b.WriteString("\n  " + line)
		}
		for _, line := range appendLine(nil, "Dialogue", s.Dialogue) {
			b.WriteString("\n  " + line)
		}
		for _, line := range appendLine(nil, "Prompt", s.GeneratedPrompt) {
			b.WriteString("\n  " + line)
		}
		for _, line := range appendLine(nil, "Notes", s.Notes) {
			b.WriteString("\n  " + line)
		}
	}
	if omitted := len(shots) - len(shown); omitted > 0 {
		fmt.Fprintf(&b, "\n%d shots omitted", omitted)
	}
	return b.String()
}

func projectBlock(p model.ProjectInfo) string {
	var lines []string
	lines = appendLine(lines, "Project", p.Title)
	lines = appendLine(lines, "Type", p.TypeLabel)
	if len(p.Tags) > 0 {
		lines = appendLine(lines, "Tags", joinNonBlank(", ", p.Tags...))
	}
	if p.ProductionStart != nil {
		lines = append(lines, "Production start: "+p.ProductionStart.Format("2006-01-02"))
	}
	if p.ProductionEnd != nil {
		lines = append(lines, "Production end: "+p.ProductionEnd.Format("2006-01-02"))
	}
	lines = appendLine(lines, "Synopsis", p.Synopsis)
	return strings.Join(lines, "\n")
}

// Truncate обрезает текст до limit символов и дописывает маркер.
// Текст не длиннее limit возвращается без изменений.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + TruncationMarker
}

func put(m map[string]string, key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	m[key] = value
}

func appendLine(lines []string, label, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return lines
	}
	return append(lines, label+": "+value)
}

func joinNonBlank(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
