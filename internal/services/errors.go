package services

import (
	"errors"
	"fmt"
)

// MalformedDeclarationError describes one declaration that was skipped.
type MalformedDeclarationError struct {
	ContainerID string
	Declaration string
	Reason      string
}

func (e *MalformedDeclarationError) Error() string {
	if e.ContainerID == "" {
		return fmt.Sprintf("malformed declaration %q: %s", e.Declaration, e.Reason)
	}
	return fmt.Sprintf("malformed declaration %q in container %s: %s", e.Declaration, shortID(e.ContainerID), e.Reason)
}

// IsMalformed reports whether err is a MalformedDeclarationError.
func IsMalformed(err error) bool {
	var m *MalformedDeclarationError
	return errors.As(err, &m)
}
