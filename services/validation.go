package services

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"notebook_server_go/config"
	"notebook_server_go/models"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var errDateSeparator = errors.New("date must not contain path separators")

// validateDate trims a folder date label and checks it can be stored and
// used as a notes directory name.
func validateDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	err := validation.Validate(date,
		validation.Required.Error("date is required"),
		validation.RuneLength(1, config.MaxDateLength).
			Error(fmt.Sprintf("date must be at most %d characters", config.MaxDateLength)),
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if strings.ContainsAny(s, `/\`) {
				return errDateSeparator
			}
			return nil
		}),
	)
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return date, nil
}

// validateDisplayName trims an image display name.
func validateDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	err := validation.Validate(name,
		validation.Required.Error("new_filename is required"),
		validation.RuneLength(1, config.MaxFilenameLength).
			Error(fmt.Sprintf("new_filename must be at most %d characters", config.MaxFilenameLength)),
	)
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return name, nil
}

func validateID(field string, id int64) error {
	if err := validation.Validate(id, validation.Required, validation.Min(int64(1))); err != nil {
		return models.NewValidationError(field + " must be a positive integer")
	}
	return nil
}

// uploadName returns the client file name without directory parts, which is
// what gets shown as the image's display name. Over-long names are cut in
// the base so the extension survives.
func uploadName(fileName string) string {
	fileName = baseName(fileName)
	r := []rune(fileName)
	if len(r) <= config.MaxFilenameLength {
		return fileName
	}
	ext := []rune(path.Ext(fileName))
	if len(ext) >= config.MaxFilenameLength {
		return string(r[:config.MaxFilenameLength])
	}
	return string(r[:config.MaxFilenameLength-len(ext)]) + string(ext)
}

// baseName strips directory parts of either separator style.
func baseName(fileName string) string {
	fileName = strings.ReplaceAll(fileName, `\`, "/")
	fileName = strings.TrimSpace(path.Base(strings.TrimSpace(fileName)))
	if fileName == "." || fileName == "/" {
		return ""
	}
	return fileName
}
