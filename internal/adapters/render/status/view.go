package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bnema/storacha-profile-cli/internal/application"
	"github.com/bnema/storacha-profile-cli/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type RenderOptions struct {
	Now time.Time
	// MaxContents caps the listed uploads. Zero lists all of them.
	MaxContents int
}

func renderView(state application.State, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Storacha Session"),
		s.header.Render(fmt.Sprintf("accounts: %d", len(state.Accounts))),
	}

	if len(state.Accounts) == 0 {
		lines = append(lines, s.empty.Render("No accounts. Run `sp login <email>`."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines, s.section.Render(renderAccounts(state, s)))

	if state.CurrentAccount == nil {
		lines = append(lines, s.section.Render(s.empty.Render("Not signed in.")))
	} else {
		lines = append(lines,
			s.section.Render(renderSpace(state, opts, s)),
			s.section.Render(renderProfile(state, s)),
		)
	}

	if problems := renderProblems(state, s); problems != "" {
		lines = append(lines, s.section.Render(problems))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAccounts(state application.State, s styles) string {
	accounts := append([]domain.Account(nil), state.Accounts...)
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].Email < accounts[j].Email })

	parts := make([]string, 0, len(accounts))
	for _, account := range accounts {
		if state.CurrentAccount != nil && state.CurrentAccount.ID == account.ID {
			title := s.current.Render(fmt.Sprintf("* %s (%s)", account.Email, account.ID))
			parts = append(parts, lipgloss.JoinHorizontal(lipgloss.Top, title, " ", planBadge(state, s)))
			continue
		}
		parts = append(parts, s.account.Render(fmt.Sprintf("  %s (%s)", account.Email, account.ID)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func planBadge(state application.State, s styles) string {
	if !state.PaymentPlanSelected {
		return s.planNone.Render("[no payment plan]")
	}

	return s.planGood.Render(fmt.Sprintf("[plan: %s]", domain.PlanLabel(state.PlanProduct)))
}

func renderSpace(state application.State, opts RenderOptions, s styles) string {
	if state.SelectedSpace == nil {
		return s.empty.Render("space: none selected")
	}

	space := state.SelectedSpace
	parts := []string{
		s.label.Render("space: ") + s.detail.Render(spaceTitle(*space)),
	}

	contents := state.Contents()
	if len(contents) == 0 {
		parts = append(parts, s.empty.Render("  no uploads"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	parts = append(parts, s.header.Render(fmt.Sprintf("  uploads: %d", len(contents))))
	shown := contents
	if opts.MaxContents > 0 && len(shown) > opts.MaxContents {
		shown = shown[:opts.MaxContents]
	}
	for _, content := range shown {
		parts = append(parts, contentLine(content, opts, s))
	}
	if hidden := len(contents) - len(shown); hidden > 0 {
		parts = append(parts, s.empty.Render(fmt.Sprintf("  ... %d more", hidden)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func spaceTitle(space domain.Space) string {
	if space.Name == "" || space.Name == space.DID {
		return space.DID
	}

	return fmt.Sprintf("%s (%s)", space.Name, space.DID)
}

func contentLine(content domain.Content, opts RenderOptions, s styles) string {
	meta := []string{}
	if content.Size > 0 {
		meta = append(meta, humanize.Bytes(content.Size))
	}
	if age := formatAge(content.UploadedAt, opts.Now); age != "" {
		meta = append(meta, age)
	}

	line := "  " + s.address.Render(content.CID)
	if len(meta) > 0 {
		line += " " + s.size.Render(strings.Join(meta, ", "))
	}

	return line
}

func formatAge(at, now time.Time) string {
	if at.IsZero() {
		return ""
	}
	if now.IsZero() {
		return at.UTC().Format(time.RFC3339)
	}

	return humanize.RelTime(at, now, "ago", "from now")
}

func renderProfile(state application.State, s styles) string {
	if state.Profile == nil {
		return s.empty.Render("profile: none")
	}

	profile := state.Profile
	parts := []string{s.label.Render("profile: ") + s.detail.Render(profile.Name)}
	if profile.Bio != "" {
		parts = append(parts, s.detail.Render("  "+profile.Bio))
	}
	if profile.AvatarCID != "" {
		parts = append(parts, s.label.Render("  avatar: ")+s.address.Render(profile.AvatarCID))
	}

	names := make([]string, 0, len(profile.SocialLinks))
	for name := range profile.SocialLinks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, s.label.Render(fmt.Sprintf("  %s: ", name))+s.detail.Render(profile.SocialLinks[name]))
	}

	if state.ProfileCID != "" {
		parts = append(parts, s.label.Render("  address: ")+s.address.Render(state.ProfileCID))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func renderProblems(state application.State, s styles) string {
	var parts []string
	if state.Error != "" {
		parts = append(parts, s.warning.Render("error: "+state.Error))
	}
	if state.ProfileError != "" {
		parts = append(parts, s.warning.Render("profile error: "+state.ProfileError))
	}

	return strings.Join(parts, "\n")
}
