package tree

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// nodeNamePattern matches valid node names. It cannot match RootName.
var nodeNamePattern = regexp.MustCompile(`^[\w\-. ]{1,255}$`)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("nodename", func(fl validator.FieldLevel) bool {
		return nodeNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
}

// ValidName reports whether name is acceptable for a Directory or File.
func ValidName(name string) bool {
	return nodeNamePattern.MatchString(name)
}

// validateInput runs struct tag validation and checks the caller identity.
func validateInput(owner string, in any) error {
	if owner == "" {
		return fmt.Errorf("%w: owner is required", ErrInvalidArgument)
	}
	if err := validate.Struct(in); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%w: %s: validation failed on '%s' tag (value: %v)",
			ErrInvalidArgument, e.Field(), e.Tag(), e.Value())
	}
	return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
}

// CreateDirectoryInput describes a new Directory.
type CreateDirectoryInput struct {
	ID       string `json:"id" validate:"required,uuid"`
	ParentID string `json:"parent_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"nodename"`
}

// CreateFileInput describes a new File. Content is stored elsewhere; only
// its hash, handle and size are recorded.
type CreateFileInput struct {
	ID            string `json:"id" validate:"required,uuid"`
	ParentID      string `json:"parent_id" validate:"required,uuid"`
	Name          string `json:"name" validate:"nodename"`
	ContentHash   string `json:"content_hash" validate:"required,max=512"`
	StorageHandle string `json:"storage_handle" validate:"required,max=1024"`
	Size          int64  `json:"size" validate:"min=0"`
	ContentType   string `json:"content_type" validate:"max=255"`
}

// RenameInput renames a Directory or File.
type RenameInput struct {
	ID   string `json:"id" validate:"required,uuid"`
	Name string `json:"name" validate:"nodename"`
}

// MoveInput moves a Directory below another Directory.
type MoveInput struct {
	ID          string `json:"id" validate:"required,uuid"`
	NewParentID string `json:"new_parent_id" validate:"required,uuid"`
}

// DeleteInput deletes a Directory or File.
type DeleteInput struct {
	ID string `json:"id" validate:"required,uuid"`
}

// SetFileStatusInput changes a File's ingestion status.
type SetFileStatusInput struct {
	ID     string     `json:"id" validate:"required,uuid"`
	Status FileStatus `json:"status" validate:"oneof=created added queued processing processed error"`
}

// CreateNamespaceInput describes a new namespace. ID is generated when empty
// and Type defaults to "document".
type CreateNamespaceInput struct {
	ID   string `json:"id,omitempty" validate:"omitempty,uuid"`
	Name string `json:"name" validate:"min=5,max=256"`
	Type string `json:"type,omitempty"`
}

// RenameNamespaceInput renames a namespace.
type RenameNamespaceInput struct {
	ID   string `json:"id" validate:"required,uuid"`
	Name string `json:"name" validate:"min=5,max=256"`
}

// DeleteNamespaceInput deletes a namespace and its tree.
type DeleteNamespaceInput struct {
	ID string `json:"id" validate:"required,uuid"`
}
