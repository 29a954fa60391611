package domain

import (
	"strings"
	"time"
)

type Ability string

const (
	AbilityAll          Ability = "*"
	AbilitySpaceAll     Ability = "space/*"
	AbilityUploadAll    Ability = "upload/*"
	AbilitySpaceBlobAdd Ability = "space/blob/add"
	AbilitySpaceInfo    Ability = "space/info"
	AbilityUploadAdd    Ability = "upload/add"
	AbilityUploadList   Ability = "upload/list"
	AbilityUploadRemove Ability = "upload/remove"
	AbilityPlanGet      Ability = "plan/get"
)

const (
	FactSpaceName       = "space/name"
	FactSpaceRegistered = "space/registered"
	FactAccountEmail    = "account/email"
)

type Capability struct {
	Can  Ability
	With string
}

// Allows reports whether c covers the requested capability. "*" covers every
// ability and "ns/*" covers every ability under ns/.
func (c Capability) Allows(req Capability) bool {
	if c.With != req.With {
		return false
	}
	if c.Can == AbilityAll || c.Can == req.Can {
		return true
	}
	if prefix, ok := strings.CutSuffix(string(c.Can), "*"); ok && strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(string(req.Can), prefix)
	}

	return false
}

type Delegation struct {
	ID           string
	Issuer       string
	Audience     string
	Capabilities []Capability
	Facts        map[string]string
	Expiration   time.Time
}

func (d Delegation) Expired(now time.Time) bool {
	return !d.Expiration.IsZero() && !now.Before(d.Expiration)
}

func (d Delegation) Allows(req Capability) bool {
	for _, capability := range d.Capabilities {
		if capability.Allows(req) {
			return true
		}
	}

	return false
}

// Resources lists the distinct resources the delegation grants abilities on.
func (d Delegation) Resources() []string {
	resources := make([]string, 0, len(d.Capabilities))
	seen := make(map[string]struct{}, len(d.Capabilities))
	for _, capability := range d.Capabilities {
		if _, ok := seen[capability.With]; ok {
			continue
		}
		seen[capability.With] = struct{}{}
		resources = append(resources, capability.With)
	}

	return resources
}
