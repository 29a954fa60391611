package domain

import (
	"fmt"
	"strings"
)

type Space struct {
	ID         string
	Name       string
	DID        string
	Registered bool
}

// NewSpace builds a Space whose ID is its DID. An empty name falls back to the DID.
func NewSpace(did, name string, registered bool) Space {
	if strings.TrimSpace(name) == "" {
		name = did
	}

	return Space{ID: did, Name: name, DID: did, Registered: registered}
}

func ValidateSpaceDID(did string) error {
	if !strings.HasPrefix(did, "did:key:") {
		return fmt.Errorf("invalid space did %q", did)
	}

	return nil
}
