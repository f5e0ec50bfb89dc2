package models

// State is the position of a chat inside the conversation wizard.
type State int

const (
	StateIdle State = iota
	StateChoosingSplitMode
	StateAwaitingCustomOrder
	StateAwaitingSplitFile
	StateAwaitingCombineFiles
	StateAwaitingCommonFile
	StateAwaitingUniqueFiles
	StateAwaitingRasterizeFile
	StateAwaitingPageRange
	StateChoosingBatchAction
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateChoosingSplitMode:
		return "choosing_split_mode"
	case StateAwaitingCustomOrder:
		return "awaiting_custom_order"
	case StateAwaitingSplitFile:
		return "awaiting_split_file"
	case StateAwaitingCombineFiles:
		return "awaiting_combine_files"
	case StateAwaitingCommonFile:
		return "awaiting_common_file"
	case StateAwaitingUniqueFiles:
		return "awaiting_unique_files"
	case StateAwaitingRasterizeFile:
		return "awaiting_rasterize_file"
	case StateAwaitingPageRange:
		return "awaiting_page_range"
	case StateChoosingBatchAction:
		return "choosing_batch_action"
	default:
		return "unknown"
	}
}

// FileTarget names the operation the next bare attachment belongs to.
type FileTarget int

const (
	TargetNone FileTarget = iota
	TargetSplit
	TargetCombine
	TargetAssemblyCommon
	TargetAssemblyUnique
	TargetRasterize
)

func (t FileTarget) String() string {
	switch t {
	case TargetNone:
		return "none"
	case TargetSplit:
		return "split"
	case TargetCombine:
		return "combine"
	case TargetAssemblyCommon:
		return "assembly_common"
	case TargetAssemblyUnique:
		return "assembly_unique"
	case TargetRasterize:
		return "rasterize"
	default:
		return "unknown"
	}
}

// Collects reports whether the target accumulates several files.
func (t FileTarget) Collects() bool {
	return t == TargetCombine || t == TargetAssemblyUnique
}

// Session is the per-chat conversation record. It lives in memory only.
type Session struct {
	ChatID          int64
	State           State
	PendingFile     *Attachment
	Files           []Attachment
	CommonFile      *Attachment
	Plan            Plan
	AwaitingFileFor FileTarget
}

// NewSession returns an idle session for the chat.
func NewSession(chatID int64) *Session {
	return &Session{ChatID: chatID}
}

// Reset drops every piece of in-flight intent and returns to idle.
func (s *Session) Reset() {
	*s = Session{ChatID: s.ChatID}
}

// TakeTarget returns the routing tag and clears it.
func (s *Session) TakeTarget() FileTarget {
	t := s.AwaitingFileFor
	s.AwaitingFileFor = TargetNone
	return t
}
