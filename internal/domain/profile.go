package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	ProfileFileName      = "profile.json"
	ProfileSchemaVersion = "1"
)

// Profile is the participant profile document stored as profile.json.
type Profile struct {
	Name        string            `json:"name"`
	Bio         string            `json:"bio,omitempty"`
	AvatarCID   string            `json:"avatarCID,omitempty"`
	SocialLinks map[string]string `json:"socialLinks,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	Version     string            `json:"version,omitempty"`
}

func (p Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("profile name is required")
	}

	return nil
}

func (p Profile) Clone() Profile {
	clone := p
	if p.SocialLinks != nil {
		clone.SocialLinks = make(map[string]string, len(p.SocialLinks))
		for name, url := range p.SocialLinks {
			clone.SocialLinks[name] = url
		}
	}
	if p.Metadata != nil {
		clone.Metadata = make(map[string]any, len(p.Metadata))
		for key, value := range p.Metadata {
			clone.Metadata[key] = value
		}
	}

	return clone
}

func (p Profile) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	return data, nil
}

// DecodeProfile parses a profile document and rejects anything without a name.
func DecodeProfile(data []byte) (Profile, error) {
	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}
	if err := profile.Validate(); err != nil {
		return Profile{}, fmt.Errorf("decode profile: %w", err)
	}

	return profile, nil
}

// ProfileVersion is one uploaded profile.json. Saving never rewrites a
// version; it appends a new one.
type ProfileVersion struct {
	CID        string
	InsertedAt time.Time
	Profile    Profile
}

type ProfileLog []ProfileVersion

// NewestFirst orders a copy of the log by insertion time, newest first.
// Equal timestamps keep log order.
func (l ProfileLog) NewestFirst() ProfileLog {
	ordered := make(ProfileLog, len(l))
	copy(ordered, l)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].InsertedAt.After(ordered[j].InsertedAt)
	})

	return ordered
}
