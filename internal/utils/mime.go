package utils

import "strings"

func GetExtensionFromMime(mimeType string) string {
	if i := strings.Index(mimeType, ";"); i > -1 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "audio/ogg":
		return "ogg"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/wav":
		return "wav"
	case "video/mp4":
		return "mp4"
	case "application/pdf":
		return "pdf"
	default:
		return "bin"
	}
}

// MessageTypeFromMime corrige o tipo genérico "text" que o gateway manda
// para anexos. "audio/ogg; codecs=opus" é nota de voz, não áudio comum.
func MessageTypeFromMime(mimeType string) string {
	lower := strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(lower, "image/"):
		return "image"
	case strings.HasPrefix(lower, "video/"):
		return "video"
	case strings.Contains(lower, "codecs=opus"):
		return "voice_note"
	case strings.HasPrefix(lower, "audio/"):
		return "audio"
	case lower == "":
		return "text"
	default:
		return "document"
	}
}
