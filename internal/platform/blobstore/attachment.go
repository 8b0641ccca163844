package blobstore

// Attachment is the set of nullable storage columns on a record that can
// carry a file. A nil Path means nothing is attached.
type Attachment struct {
	Path        *string `json:"file_path,omitempty" db:"file_path"`
	Name        *string `json:"file_name,omitempty" db:"file_name"`
	Size        *int64  `json:"file_size,omitempty" db:"file_size"`
	ContentType *string `json:"file_content_type,omitempty" db:"file_content_type"`
}

// HasFile reports whether a file is currently attached.
func (a Attachment) HasFile() bool {
	return a.Path != nil && *a.Path != ""
}

// StoredPath returns the storage path or "" when nothing is attached.
func (a Attachment) StoredPath() string {
	if a.Path == nil {
		return ""
	}
	return *a.Path
}

// Change describes what should happen to a record's attachment on update.
// New points at a file already committed to the store by the upload
// endpoints; Remove detaches without a replacement. Both zero means keep
// whatever is attached.
type Change struct {
	New    *FileInfo
	Remove bool
}

// Apply resolves a Change against the currently stored attachment. It fills
// target with the resulting column values and returns the path that must be
// removed from the store once the row write has succeeded, or "" when no
// cleanup is due.
func Apply(target *Attachment, current Attachment, change Change) (obsoletePath string) {
	switch {
	case change.New != nil:
		target.Path = &change.New.Path
		target.Name = &change.New.Name
		target.Size = &change.New.Size
		target.ContentType = &change.New.ContentType
		if current.HasFile() && current.StoredPath() != change.New.Path {
			return current.StoredPath()
		}
	case change.Remove:
		*target = Attachment{}
		return current.StoredPath()
	default:
		*target = current
	}
	return ""
}
