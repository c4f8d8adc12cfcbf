// Package uid generates and checks the identifiers used for items, images and requests.
package uid

import "github.com/google/uuid"

// New generates a new random identifier.
func New() string {
	return uuid.New().String()
}

// Canonical parses id and returns it in lower-case hyphenated form.
// ok is false when id is not a UUID.
func Canonical(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}
