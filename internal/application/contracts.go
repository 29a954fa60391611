package application

// Operation names a store action. The names double as metric labels.
type Operation string

const (
	OpLogin              Operation = "login"
	OpLogout             Operation = "logout"
	OpSwitchAccount      Operation = "switch_account"
	OpAddAccount         Operation = "add_account"
	OpRemoveAccount      Operation = "remove_account"
	OpFetchSpaces        Operation = "fetch_spaces"
	OpCreateSpace        Operation = "create_space"
	OpDeleteSpace        Operation = "delete_space"
	OpSelectSpace        Operation = "select_space"
	OpFetchSpaceContents Operation = "fetch_space_contents"
	OpUploadToSpace      Operation = "upload_to_space"
	OpDeleteFromSpace    Operation = "delete_from_space"
	OpLoadProfile        Operation = "load_profile"
	OpSaveProfile        Operation = "save_profile"
	OpUploadAvatar       Operation = "upload_avatar"
	OpDeleteProfile      Operation = "delete_profile"
	OpProfileHistory     Operation = "profile_history"
	OpReset              Operation = "reset"
)

// Style says how an operation reports failure.
type Style string

const (
	// StyleThrow records the failure (when the operation has a channel) and
	// returns it.
	StyleThrow Style = "throw"
	// StyleSetAndReturn records the failure in its channel and returns
	// nothing; callers read the channel.
	StyleSetAndReturn Style = "set-and-return"
	StyleInfallible   Style = "infallible"
)

type Channel string

const (
	ChannelNone    Channel = ""
	ChannelError   Channel = "error"
	ChannelProfile Channel = "profile"
)

type Contract struct {
	Style   Style
	Channel Channel
	// NoOpWithoutAccount marks operations that silently do nothing when no
	// account is current instead of failing.
	NoOpWithoutAccount bool
}

var Contracts = map[Operation]Contract{
	OpLogin:              {Style: StyleThrow, Channel: ChannelError},
	OpLogout:             {Style: StyleInfallible},
	OpSwitchAccount:      {Style: StyleSetAndReturn, Channel: ChannelError},
	OpAddAccount:         {Style: StyleInfallible},
	OpRemoveAccount:      {Style: StyleInfallible},
	OpFetchSpaces:        {Style: StyleSetAndReturn, Channel: ChannelError, NoOpWithoutAccount: true},
	OpCreateSpace:        {Style: StyleThrow, Channel: ChannelError},
	OpDeleteSpace:        {Style: StyleSetAndReturn, Channel: ChannelError},
	OpSelectSpace:        {Style: StyleInfallible},
	OpFetchSpaceContents: {Style: StyleSetAndReturn, Channel: ChannelError, NoOpWithoutAccount: true},
	OpUploadToSpace:      {Style: StyleThrow, Channel: ChannelError},
	OpDeleteFromSpace:    {Style: StyleThrow, Channel: ChannelError, NoOpWithoutAccount: true},
	OpLoadProfile:        {Style: StyleSetAndReturn, Channel: ChannelProfile},
	OpSaveProfile:        {Style: StyleThrow, Channel: ChannelProfile},
	OpUploadAvatar:       {Style: StyleThrow},
	OpDeleteProfile:      {Style: StyleThrow, Channel: ChannelProfile},
	OpProfileHistory:     {Style: StyleThrow},
	OpReset:              {Style: StyleInfallible},
}

// ErrorFor returns the message an operation left in its channel.
func (s State) ErrorFor(op Operation) string {
	switch Contracts[op].Channel {
	case ChannelError:
		return s.Error
	case ChannelProfile:
		return s.ProfileError
	default:
		return ""
	}
}
