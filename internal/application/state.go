package application

import (
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/bnema/storacha-profile-cli/internal/ports"
)

// State is everything the store knows. Only the Snapshot part is persisted;
// spaces, contents and the profile are always re-derived from the network.
type State struct {
	Accounts            []domain.Account
	CurrentAccount      *domain.Account
	IsAuthenticated     bool
	PaymentPlanSelected bool
	PlanProduct         string

	Spaces        []domain.Space
	SelectedSpace *domain.Space
	SpaceContents map[string][]domain.Content

	Profile    *domain.Profile
	ProfileCID string

	IsLoading         bool
	IsLoadingSpaces   bool
	IsLoadingContents bool
	IsLoadingProfile  bool
	IsSavingProfile   bool

	Error        string
	ProfileError string
}

func initialState() State {
	return State{SpaceContents: map[string][]domain.Content{}}
}

func (s State) Clone() State {
	clone := s
	clone.Accounts = append([]domain.Account(nil), s.Accounts...)
	clone.Spaces = append([]domain.Space(nil), s.Spaces...)
	if s.CurrentAccount != nil {
		current := *s.CurrentAccount
		clone.CurrentAccount = &current
	}
	if s.SelectedSpace != nil {
		selected := *s.SelectedSpace
		clone.SelectedSpace = &selected
	}
	clone.SpaceContents = make(map[string][]domain.Content, len(s.SpaceContents))
	for space, contents := range s.SpaceContents {
		clone.SpaceContents[space] = append([]domain.Content(nil), contents...)
	}
	if s.Profile != nil {
		profile := s.Profile.Clone()
		clone.Profile = &profile
	}

	return clone
}

func (s State) Snapshot() ports.Snapshot {
	clone := s.Clone()

	return ports.Snapshot{
		Accounts:            clone.Accounts,
		CurrentAccount:      clone.CurrentAccount,
		IsAuthenticated:     clone.IsAuthenticated,
		PaymentPlanSelected: clone.PaymentPlanSelected,
	}
}

// Contents returns the listing for the selected space.
func (s State) Contents() []domain.Content {
	if s.SelectedSpace == nil {
		return nil
	}

	return s.SpaceContents[s.SelectedSpace.ID]
}

func (s State) isCurrent(id domain.AccountID) bool {
	return s.CurrentAccount != nil && s.CurrentAccount.ID == id
}

// clearAccountScoped drops everything derived from the previous account.
func (s *State) clearAccountScoped() {
	s.Spaces = nil
	s.SelectedSpace = nil
	s.SpaceContents = map[string][]domain.Content{}
	s.Profile = nil
	s.ProfileCID = ""
	s.IsLoadingProfile = false
	s.IsSavingProfile = false
	s.ProfileError = ""
}

func (s *State) signOut() {
	s.CurrentAccount = nil
	s.IsAuthenticated = false
	s.PaymentPlanSelected = false
	s.PlanProduct = ""
	s.clearAccountScoped()
}

func fromSnapshot(snapshot ports.Snapshot) State {
	state := initialState()
	state.Accounts = append([]domain.Account(nil), snapshot.Accounts...)
	if snapshot.CurrentAccount != nil && snapshot.IsAuthenticated {
		current := *snapshot.CurrentAccount
		state.CurrentAccount = &current
		state.IsAuthenticated = true
		state.PaymentPlanSelected = snapshot.PaymentPlanSelected
	}

	return state
}
