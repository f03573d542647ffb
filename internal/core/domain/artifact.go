package domain

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ArtifactName is the storage name of the assembled file of a session
func ArtifactName(sessionID uuid.UUID, filename string) string {
	return sessionID.String() + "_" + SanitizeFilename(filename)
}

// SanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-]
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	clean = strings.TrimLeft(clean, ".")
	if clean == "" {
		return "upload"
	}
	return clean
}
