package model

import (
	"fmt"
	"strings"
	"time"
)

// ContextKind - метка варианта контекста.
type ContextKind string

const (
	ContextGeneral       ContextKind = "general"
	ContextScriptEpisode ContextKind = "script-episode"
	ContextStoryboard    ContextKind = "storyboard"
	ContextScriptProject ContextKind = "script-project"
)

// ContextVariant - закрытое объединение контекстов, которые пользовательский экран
// передаёт в ядро. Реализации есть только в этом пакете.
type ContextVariant interface {
	Kind() ContextKind
	isContextVariant()
}

// ProjectInfo - данные проекта, которые ядро читает из хранилища проектов.
type ProjectInfo struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	TypeLabel       string     `json:"typeLabel,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	ProductionStart *time.Time `json:"productionStart,omitempty"`
	ProductionEnd   *time.Time `json:"productionEnd,omitempty"`
	Synopsis        string     `json:"synopsis,omitempty"`
}

// EpisodeInfo - эпизод сценария.
type EpisodeInfo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Synopsis string `json:"synopsis,omitempty"`
	Body     string `json:"body,omitempty"`
}

// SceneInfo - живой объект сцены.
type SceneInfo struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Order   *int   `json:"order,omitempty"`
	Summary string `json:"summary,omitempty"`
	Body    string `json:"body,omitempty"`
}

// SceneSnapshot - облегчённый снимок сцены, сохранённый чат-сессией.
// Используется, когда живая сцена уже недоступна.
type SceneSnapshot struct {
	Title   string `json:"title"`
	Order   *int   `json:"order,omitempty"`
	Summary string `json:"summary,omitempty"`
	Body    string `json:"body,omitempty"`
}

// WorkspaceShot - кадр в рабочей области раскадровки.
type WorkspaceShot struct {
	ShotNumber       int    `json:"shotNumber"`
	SceneTitle       string `json:"sceneTitle,omitempty"`
	ShotScale        string `json:"shotScale,omitempty"`
	CameraMovement   string `json:"cameraMovement,omitempty"`
	Duration         string `json:"duration,omitempty"`
	ImageDescription string `json:"imageDescription,omitempty"`
	Dialogue         string `json:"dialogue,omitempty"`
	GeneratedPrompt  string `json:"generatedPrompt,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// StoryboardWorkspace - рабочая область раскадровки.
type StoryboardWorkspace struct {
	Shots []WorkspaceShot `json:"shots"`
}

// GeneralContext - контекст без привязки к проекту.
type GeneralContext struct{}

func (GeneralContext) Kind() ContextKind { return ContextGeneral }
func (GeneralContext) isContextVariant() {}

// ScriptEpisodeContext - эпизод сценария; проект может отсутствовать.
type ScriptEpisodeContext struct {
	Project *ProjectInfo
	Episode EpisodeInfo
}

func (ScriptEpisodeContext) Kind() ContextKind { return ContextScriptEpisode }
func (ScriptEpisodeContext) isContextVariant() {}

// StoryboardContext - раскадровка эпизода.
type StoryboardContext struct {
	Project       ProjectInfo
	Episode       EpisodeInfo
	Scene         *SceneInfo
	SceneSnapshot *SceneSnapshot
	Workspace     *StoryboardWorkspace
}

func (StoryboardContext) Kind() ContextKind { return ContextStoryboard }
func (StoryboardContext) isContextVariant() {}

// ScriptProjectContext - проект целиком.
type ScriptProjectContext struct {
	Project ProjectInfo
}

func (ScriptProjectContext) Kind() ContextKind { return ContextScriptProject }
func (ScriptProjectContext) isContextVariant() {}

// NewScriptEpisodeContext создаёт контекст эпизода.
func NewScriptEpisodeContext(project *ProjectInfo, episode EpisodeInfo) (ScriptEpisodeContext, error) {
	if project != nil {
		if err := requireProject(*project); err != nil {
			return ScriptEpisodeContext{}, err
		}
		p := *project
		project = &p
	}
	return ScriptEpisodeContext{Project: project, Episode: episode}, nil
}

// NewStoryboardContext создаёт контекст раскадровки. Проект обязателен.
func NewStoryboardContext(project ProjectInfo, episode EpisodeInfo, scene *SceneInfo, snapshot *SceneSnapshot, workspace *StoryboardWorkspace) (StoryboardContext, error) {
	if err := requireProject(project); err != nil {
		return StoryboardContext{}, err
	}
	return StoryboardContext{
		Project:       project,
		Episode:       episode,
		Scene:         scene,
		SceneSnapshot: snapshot,
		Workspace:     workspace,
	}, nil
}

// NewScriptProjectContext создаёт контекст проекта. Проект обязателен.
func NewScriptProjectContext(project ProjectInfo) (ScriptProjectContext, error) {
	if err := requireProject(project); err != nil {
		return ScriptProjectContext{}, err
	}
	return ScriptProjectContext{Project: project}, nil
}

func requireProject(p ProjectInfo) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: project id is required", ErrInvalidRequest)
	}
	return nil
}
