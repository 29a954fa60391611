package domain

import "errors"

var (
	ErrInvalidEmail             = errors.New("invalid email format")
	ErrAccountNotFound          = errors.New("account not found")
	ErrNoAccountAfterLogin      = errors.New("no account found after login; create an account in the storage console and select a payment plan")
	ErrNoAccountSelected        = errors.New("no account selected")
	ErrNoAccountOrSpace         = errors.New("no account or space selected")
	ErrClientNotInitialized     = errors.New("client not initialized")
	ErrNoSpace                  = errors.New("no space found; create a space in the storage console first")
	ErrNoProfile                = errors.New("no profile to delete")
	ErrProofsUnavailable        = errors.New("could not obtain authorization; ensure a space exists")
	ErrSpaceDeletionUnsupported = errors.New("space deletion is not supported by the storage network")
	ErrLoginTimeout             = errors.New("timed out waiting for email confirmation")
	ErrPlanNotFound             = errors.New("payment plan not found")
	ErrNotFound                 = errors.New("not found")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrSecretNotFound           = errors.New("secret not found")
)
