package domain

import (
	"mime"
	"path"
	"strings"
)

// FileKind selects which send operation delivers a file.
type FileKind string

const (
	FileKindDocument  FileKind = "document"
	FileKindPhoto     FileKind = "photo"
	FileKindVideo     FileKind = "video"
	FileKindAnimation FileKind = "animation"
	FileKindAudio     FileKind = "audio"
)

// DefaultExtension returns the extension used when an upload carries no
// file name of its own.
func (k FileKind) DefaultExtension() string {
	switch k {
	case FileKindPhoto:
		return ".jpg"
	case FileKindVideo, FileKindAnimation:
		return ".mp4"
	case FileKindAudio:
		return ".mp3"
	default:
		return ".bin"
	}
}

// ClassifyFile derives the delivery kind from a file reference's extension.
// Unknown or missing extensions are delivered as documents.
func ClassifyFile(ref string) FileKind {
	ext := strings.ToLower(path.Ext(ref))
	if ext == "" {
		return FileKindDocument
	}
	if ext == ".gif" {
		return FileKindAnimation
	}

	mediaType := mime.TypeByExtension(ext)
	switch {
	case ext == ".jpg" || ext == ".jpeg" || ext == ".png" || ext == ".webp":
		return FileKindPhoto
	case ext == ".mp4" || ext == ".mov" || ext == ".m4v":
		return FileKindVideo
	case ext == ".mp3" || ext == ".m4a" || ext == ".ogg" || ext == ".flac":
		return FileKindAudio
	case strings.HasPrefix(mediaType, "video/"):
		return FileKindVideo
	case strings.HasPrefix(mediaType, "audio/"):
		return FileKindAudio
	default:
		return FileKindDocument
	}
}

// StoredFileName builds the collision-free name an upload is stored under:
// {unique_id}_{original_name}, or {unique_id}{ext} when the upload has no name.
func StoredFileName(uniqueID, originalName string, kind FileKind) string {
	name := sanitizeFileName(originalName)
	if name == "" {
		return uniqueID + kind.DefaultExtension()
	}
	return uniqueID + "_" + name
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
