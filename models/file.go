package models

// Category identifies the processing family a client claims for an upload.
type Category string

const (
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
)

// UploadedFile is a staged upload awaiting conversion. The staged file is
// consumed exactly once: whichever converter handles it removes it from disk
// on completion or error.
type UploadedFile struct {
	OriginalName string
	Path         string
	Size         int64
}
