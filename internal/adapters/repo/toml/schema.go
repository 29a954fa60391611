package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version             int             `toml:"version"`
	CurrentAccount      string          `toml:"current_account,omitempty"`
	IsAuthenticated     bool            `toml:"is_authenticated"`
	PaymentPlanSelected bool            `toml:"payment_plan_selected"`
	Accounts            []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported state schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	ID         string `toml:"id"`
	Email      string `toml:"email"`
	AccountDID string `toml:"account_did"`
	AgentDID   string `toml:"agent_did"`
	CreatedAt  string `toml:"created_at"`
}
