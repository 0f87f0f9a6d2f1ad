// Package idgen generates the snapshot IDs and ETags attached to stored
// option records.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet defines the character set used for ETags.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of characters in an ETag.
var Length = 16

// ETag returns a short random entity tag.
func ETag() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return id, nil
}

// SnapshotID returns a new snapshot identifier.
func SnapshotID() string {
	return uuid.NewString()
}

// Source produces identifiers for record metadata.
type Source interface {
	SnapshotID() string
	ETag() (string, error)
}

// Default is the Source backed by this package's generators.
var Default Source = defaultSource{}

type defaultSource struct{}

func (defaultSource) SnapshotID() string    { return SnapshotID() }
func (defaultSource) ETag() (string, error) { return ETag() }
