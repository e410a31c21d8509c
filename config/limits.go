package config

const (
	// MaxDateLength bounds folder date labels. Labels are free-form but are
	// also used as a directory name for notes images.
	MaxDateLength = 64

	// MaxFilenameLength bounds image display names.
	MaxFilenameLength = 255
)
