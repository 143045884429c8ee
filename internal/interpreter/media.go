package interpreter

import (
	"encoding/base64"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// Media - медиа, найденные в ответе провайдера.
type Media struct {
	ImageURL  string
	ImageData string // base64 без префикса data URI
	ImageMIME string
	VideoURL  string
}

// HasImage сообщает, найдено ли изображение.
func (m Media) HasImage() bool { return m.ImageURL != "" || m.ImageData != "" }

var (
	dataURIPattern       = regexp.MustCompile(`data:(image/[A-Za-z0-9.+-]+);base64,([A-Za-z0-9+/]+={0,2})`)
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)
	bareURLPattern       = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)
)

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {}, ".bmp": {}, ".svg": {},
}

// ExtractMedia ищет изображение и видео в свободном тексте.
// Для изображения порядок такой: явно переданное адаптером, data URI, markdown-картинка,
// голый URL с расширением изображения. Для видео: явно переданное, затем голый URL на .mp4.
// В каждой категории побеждает первое совпадение. Ничего не найти - нормальный исход.
func ExtractMedia(text string, explicit Media) Media {
	out := Media{}

	switch {
	case explicit.HasImage():
		out.ImageURL = explicit.ImageURL
		out.ImageData = explicit.ImageData
		out.ImageMIME = explicit.ImageMIME
	default:
		if mime, data, ok := findDataURI(text); ok {
			out.ImageData, out.ImageMIME = data, mime
		} else if u, ok := findMarkdownImage(text); ok {
			out.ImageURL = u
		} else if u, ok := findBareURL(text, isImagePath); ok {
			out.ImageURL = u
		}
	}

	if explicit.VideoURL != "" {
		out.VideoURL = explicit.VideoURL
	} else if u, ok := findBareURL(text, isVideoPath); ok {
		out.VideoURL = u
	}
	return out
}

// DecodeImage декодирует встроенные данные изображения.
// Некорректный base64 не ошибка: вызывающий код получает nil и может показать только текст.
func DecodeImage(m Media) []byte {
	if m.ImageData == "" {
		return nil
	}
	if data, err := base64.StdEncoding.DecodeString(m.ImageData); err == nil {
		return data
	}
	if data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(m.ImageData, "=")); err == nil {
		return data
	}
	return nil
}

func findDataURI(text string) (mime, data string, ok bool) {
	m := dataURIPattern.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

func findMarkdownImage(text string) (string, bool) {
	for _, m := range markdownImagePattern.FindAllStringSubmatch(text, -1) {
		u := m[1]
		if isVideoPath(u) {
			continue
		}
		return u, true
	}
	return "", false
}

func findBareURL(text string, accept func(string) bool) (string, bool) {
	for _, candidate := range bareURLPattern.FindAllString(text, -1) {
		candidate = strings.TrimRight(candidate, ".,;:!?*_`")
		if accept(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func isImagePath(raw string) bool {
	_, ok := imageExtensions[extension(raw)]
	return ok
}

func isVideoPath(raw string) bool {
	return extension(raw) == ".mp4"
}

func extension(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}
