package domain

import (
	"fmt"
	"strings"
	"time"
)

type AccountID string

const accountIDPrefix = "account-"

type Account struct {
	ID         AccountID
	Email      string
	AccountDID string
	AgentDID   string
	CreatedAt  time.Time
}

// AccountIDFromEmail derives the local account identifier for an email address.
func AccountIDFromEmail(email string) AccountID {
	return AccountID(accountIDPrefix + strings.TrimSpace(email))
}

// ValidateEmail is a cheap local guard, not full address validation.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if !strings.Contains(trimmed, "@") {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	return nil
}

// MailtoDID returns the did:mailto identifier the network assigns to an email.
func MailtoDID(email string) string {
	local, domainPart, ok := strings.Cut(strings.TrimSpace(email), "@")
	if !ok {
		return ""
	}

	return fmt.Sprintf("did:mailto:%s:%s", strings.ToLower(domainPart), local)
}
