package model

import "time"

// StoryboardEntry - кадр, извлечённый из ответа модели.
type StoryboardEntry struct {
	ShotNumber      int    `json:"shotNumber"`
	ShotScale       string `json:"shotScale,omitempty"`
	CameraMovement  string `json:"cameraMovement,omitempty"`
	Duration        string `json:"duration,omitempty"`
	Dialogue        string `json:"dialogue,omitempty"`
	GeneratedPrompt string `json:"generatedPrompt,omitempty"`
	Notes           string `json:"notes,omitempty"`
	SceneTitle      string `json:"sceneTitle,omitempty"`
	SceneSummary    string `json:"sceneSummary,omitempty"`
}

// AuditLogEntry - запись журнала аудита. Записи только добавляются.
type AuditLogEntry struct {
	JobID        string            `json:"jobId" db:"job_id"`
	Action       string            `json:"action" db:"action"`
	PromptHash   string            `json:"promptHash" db:"prompt_hash"`
	AssetRefs    []string          `json:"assetRefs" db:"asset_refs"`
	ModelVersion string            `json:"modelVersion" db:"model_version"`
	Route        string            `json:"route" db:"route"`
	Metadata     map[string]string `json:"metadata" db:"metadata"`
	CreatedAt    time.Time         `json:"createdAt" db:"created_at"`
}
