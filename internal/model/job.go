package model

import "time"

// JobRequest - каноническая единица работы для адаптера провайдера.
// Принадлежит одному вызову и не разделяется между горутинами.
type JobRequest struct {
	ID        string
	Action    string
	Fields    map[string]string
	Channel   Channel
	AssetRefs []string
}

// MergeFields сливает карты полей слева направо; побеждает последняя запись.
func MergeFields(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Usage - расход токенов вызова.
type Usage struct {
	PromptTokens     int  `json:"promptTokens"`
	CompletionTokens int  `json:"completionTokens"`
	TotalTokens      int  `json:"totalTokens"`
	Estimated        bool `json:"estimated,omitempty"`
}

// JobMetadata - метаданные результата.
type JobMetadata struct {
	// Prompt - полностью собранный вход провайдера.
	Prompt  string        `json:"prompt"`
	Model   string        `json:"model"`
	Elapsed time.Duration `json:"elapsed"`
	Usage   Usage         `json:"usage"`
}

// ImageRef - изображение, которое адаптер вернул явно: URL или встроенные данные в base64.
type ImageRef struct {
	URL      string `json:"url,omitempty"`
	Data     string `json:"data,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
}

// JobResult - ответ адаптера на один JobRequest.
type JobResult struct {
	Text     string
	Image    *ImageRef
	VideoURL string
	Metadata JobMetadata
}

// DecodedImage - изображение в результате действия.
type DecodedImage struct {
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Base64   string `json:"base64,omitempty"`
	Data     []byte `json:"-"`
}

// ActionResult - результат действия для вызывающего кода.
type ActionResult struct {
	JobID    string        `json:"jobId"`
	Text     string        `json:"text,omitempty"`
	Image    *DecodedImage `json:"image,omitempty"`
	VideoURL string        `json:"videoUrl,omitempty"`
	Metadata JobMetadata   `json:"metadata"`
	Route    Route         `json:"route"`
}
