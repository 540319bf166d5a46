// Package preview decides how a stored file is shown in the viewer and owns
// the short-lived preview handles that media elements load their bytes from.
package preview

import "strings"

// Kind is the viewer mode for a file.
type Kind string

const (
	KindImage       Kind = "image"
	KindText        Kind = "text"
	KindPDF         Kind = "pdf"
	KindVideo       Kind = "video"
	KindAudio       Kind = "audio"
	KindUnsupported Kind = "unsupported"
	KindError       Kind = "error"
)

// Classify maps a MIME type to a viewer mode. Order matters: "image/svg+xml"
// is an image, "application/xml" is text.
func Classify(mimeType string) Kind {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mimeType == "":
		return KindUnsupported
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case strings.HasPrefix(mimeType, "text/"),
		strings.Contains(mimeType, "json"),
		strings.Contains(mimeType, "xml"),
		strings.Contains(mimeType, "csv"):
		return KindText
	case strings.Contains(mimeType, "pdf"):
		return KindPDF
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return KindAudio
	default:
		return KindUnsupported
	}
}

// Streamed reports whether the kind is rendered by the browser from a URL
// rather than inlined into the page.
func (k Kind) Streamed() bool {
	switch k {
	case KindImage, KindPDF, KindVideo, KindAudio:
		return true
	}
	return false
}

// IconKind selects the icon shown next to a file in the list.
type IconKind string

const (
	IconGeneric  IconKind = "file"
	IconImage    IconKind = "image"
	IconVideo    IconKind = "video"
	IconAudio    IconKind = "music"
	IconDocument IconKind = "file-text"
	IconArchive  IconKind = "file-archive"
)

func Icon(mimeType string) IconKind {
	mimeType = strings.ToLower(mimeType)
	switch {
	case mimeType == "":
		return IconGeneric
	case strings.HasPrefix(mimeType, "image/"):
		return IconImage
	case strings.HasPrefix(mimeType, "video/"):
		return IconVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return IconAudio
	case strings.Contains(mimeType, "pdf"), strings.Contains(mimeType, "text"):
		return IconDocument
	case strings.Contains(mimeType, "zip"), strings.Contains(mimeType, "rar"):
		return IconArchive
	default:
		return IconGeneric
	}
}
