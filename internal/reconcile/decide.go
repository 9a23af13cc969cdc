package reconcile

// Action is what a device should do with its replica after sign-in or on a
// foreground check.
type Action int

const (
	// ActionNoop means nothing needs to move.
	ActionNoop Action = iota
	// ActionPull means the cloud snapshot should be copied into the empty
	// local store without asking.
	ActionPull
	// ActionPromptUpload means only the device has data; ask before
	// pushing it to the account.
	ActionPromptUpload
	// ActionPromptMerge means both sides have data; ask whether to merge,
	// replace local, or keep local.
	ActionPromptMerge
)

func (a Action) String() string {
	switch a {
	case ActionPull:
		return "pull"
	case ActionPromptUpload:
		return "prompt-upload"
	case ActionPromptMerge:
		return "prompt-merge"
	default:
		return "noop"
	}
}

// Decide maps the three observations to an action. It does no I/O and must
// be re-evaluated each time since local and cloud contents change.
//
// Once a device is migrated for an account, local data is authoritative and
// the only remaining move is populating an empty device from the cloud.
func Decide(hasLocal, hasCloud, migrated bool) Action {
	if migrated {
		if !hasLocal && hasCloud {
			return ActionPull
		}
		return ActionNoop
	}
	switch {
	case hasLocal && !hasCloud:
		return ActionPromptUpload
	case !hasLocal && hasCloud:
		return ActionPull
	case hasLocal && hasCloud:
		return ActionPromptMerge
	default:
		return ActionNoop
	}
}
