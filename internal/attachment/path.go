package attachment

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	underscores = regexp.MustCompile(`_+`)
)

// Sanitize replaces characters outside [A-Za-z0-9._-] with '_', collapses
// runs of '_' and trims them from both ends.
func Sanitize(name string) string {
	s := unsafeChars.ReplaceAllString(name, "_")
	s = underscores.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "file"
	}
	return s
}

// PathInput identifies the slot an upload belongs to
type PathInput struct {
	RegistrationNo string
	SubheadingID   int64
	ScoreFieldID   int64
	ParameterID    int64
	RowIndex       int
	OriginalName   string
}

// PathBuilder synthesizes deterministic storage paths for uploads
type PathBuilder struct {
	Root string
}

// NewPathBuilder creates a builder rooted at root (e.g. "recruitment")
func NewPathBuilder(root string) *PathBuilder {
	return &PathBuilder{Root: strings.Trim(root, "/")}
}

// Path returns {root}/{reg}/{reg}_{sub}_{scoreField}_{param}_{row}_{name}
func (b *PathBuilder) Path(in PathInput) string {
	reg := Sanitize(in.RegistrationNo)
	file := fmt.Sprintf("%s_%d_%d_%d_%d_%s",
		reg, in.SubheadingID, in.ScoreFieldID, in.ParameterID, in.RowIndex, Sanitize(in.OriginalName))
	return path.Join(b.Root, reg, file)
}
