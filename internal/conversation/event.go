package conversation

import (
	"context"

	"pdfbot/internal/executor"
	"pdfbot/internal/models"
)

type EventKind int

const (
	EventCommand EventKind = iota
	EventButton
	EventText
	EventAttachment
	EventBatchReady
	EventUnsupported
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventButton:
		return "button"
	case EventText:
		return "text"
	case EventAttachment:
		return "attachment"
	case EventBatchReady:
		return "batch_ready"
	case EventUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Event is one inbound interaction, already stripped of transport details.
// MessageID is the bot message a button belongs to, zero otherwise.
type Event struct {
	Kind       EventKind
	ChatID     int64
	MessageID  int
	Command    string
	Token      string
	Text       string
	Attachment *models.Attachment
	BatchID    string
	Batch      []models.Attachment
}

// Button tokens round-tripped through the transport.
const (
	TokenSplit        = "split"
	TokenCombine      = "combine"
	TokenAssembly     = "assembly"
	TokenRasterize    = "pdf_to_img"
	TokenSplitSingle  = "split_single"
	TokenSplitDouble  = "split_double"
	TokenSplitCustom  = "split_custom"
	TokenProcessDone  = "process_done"
	TokenGroupCombine = "group_combine"
	TokenGroupSplit   = "group_split"
	TokenMainMenu     = "main_menu"
)

const (
	CommandStart  = "start"
	CommandCancel = "cancel"
)

type Button struct {
	Text  string
	Token string
}

// Keyboard is a grid of inline buttons; nil means no keyboard.
type Keyboard [][]Button

// Outbox is the outbound side of the chat transport.
type Outbox interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	SendDocument(ctx context.Context, chatID int64, doc executor.Document) error
}

// Operations runs the document work. Implemented by *executor.Executor.
type Operations interface {
	Split(ctx context.Context, file models.Attachment, plan models.Plan, sink executor.Sink) (int, error)
	Combine(ctx context.Context, files []models.Attachment, sink executor.Sink) (int, error)
	Assemble(ctx context.Context, common *models.Attachment, uniques []models.Attachment, sink executor.Sink) (int, error)
	Rasterize(ctx context.Context, file models.Attachment, selectPages executor.PageSelector, sink executor.Sink) (int, error)
}

// Recorder stores finished operations. Optional.
type Recorder interface {
	Record(ctx context.Context, op *models.Operation) error
}
