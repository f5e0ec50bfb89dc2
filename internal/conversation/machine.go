// Package conversation is the per-chat state machine behind the bot's wizard
// and its "just send files" shortcut.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pdfbot/internal/batch"
	"pdfbot/internal/executor"
	"pdfbot/internal/models"
	"pdfbot/internal/pagerange"
	"pdfbot/internal/session"
)

// Batcher collects media-group members until the group goes quiet.
type Batcher interface {
	Add(key batch.Key, att models.Attachment) int
}

// Machine applies events to sessions. Handle must not be called concurrently
// for the same chat.
type Machine struct {
	store   *session.Store
	batches Batcher
	ops     Operations
	outbox  Outbox
	journal Recorder
	logger  logrus.FieldLogger
}

func NewMachine(store *session.Store, batches Batcher, ops Operations, outbox Outbox, logger logrus.FieldLogger) *Machine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Machine{store: store, batches: batches, ops: ops, outbox: outbox, logger: logger}
}

// SetRecorder enables the operation journal.
func (m *Machine) SetRecorder(r Recorder) {
	m.journal = r
}

// Handle applies one event to the chat's session.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	se := m.store.Get(ev.ChatID)
	defer m.store.Publish(se)
	log := m.logger.WithFields(logrus.Fields{
		"chat_id": ev.ChatID,
		"event":   ev.Kind.String(),
		"state":   se.State.String(),
	})
	log.Debug("handling event")

	switch ev.Kind {
	case EventCommand:
		return m.onCommand(ctx, se, ev)
	case EventButton:
		return m.onButton(ctx, se, ev)
	case EventText:
		return m.onText(ctx, se, ev)
	case EventAttachment:
		if ev.Attachment == nil {
			return m.say(ctx, se.ChatID, textUnexpected, nil)
		}
		if ev.BatchID != "" {
			n := m.batches.Add(batch.Key{ChatID: ev.ChatID, BatchID: ev.BatchID}, *ev.Attachment)
			log.WithField("members", n).Debug("attachment deferred to batch")
			return nil
		}
		if !ev.Attachment.IsPDF() {
			se.Reset()
			return m.say(ctx, se.ChatID, textNotPDF, nil)
		}
		return m.onAttachment(ctx, se, *ev.Attachment)
	case EventBatchReady:
		return m.onBatch(ctx, se, ev.Batch)
	default:
		return m.say(ctx, se.ChatID, textUnexpected, nil)
	}
}

func (m *Machine) onCommand(ctx context.Context, se *models.Session, ev Event) error {
	switch ev.Command {
	case CommandStart:
		se.Reset()
		return m.say(ctx, se.ChatID, textWelcome, mainKeyboard)
	case CommandCancel:
		se.Reset()
		return m.say(ctx, se.ChatID, textCancelled, mainKeyboard)
	default:
		return m.say(ctx, se.ChatID, textUnexpected, nil)
	}
}

func (m *Machine) onButton(ctx context.Context, se *models.Session, ev Event) error {
	if ev.Token == TokenMainMenu {
		se.Reset()
		return m.reply(ctx, ev, textCancelled, mainKeyboard)
	}

	switch se.State {
	case models.StateIdle:
		switch ev.Token {
		case TokenSplit:
			se.State = models.StateChoosingSplitMode
			return m.reply(ctx, ev, textChooseSplitMode, splitModeKeyboard("« Назад в главное меню"))
		case TokenCombine:
			se.State = models.StateAwaitingCombineFiles
			se.Files = nil
			se.AwaitingFileFor = models.TargetCombine
			return m.reply(ctx, ev, textAskCombineFiles, doneKeyboard("✅ Все файлы отправлены"))
		case TokenAssembly:
			se.State = models.StateAwaitingCommonFile
			se.AwaitingFileFor = models.TargetAssemblyCommon
			return m.reply(ctx, ev, textAskCommonFile, backKeyboard)
		case TokenRasterize:
			se.State = models.StateAwaitingRasterizeFile
			se.AwaitingFileFor = models.TargetRasterize
			return m.reply(ctx, ev, textAskRasterizeFile, backKeyboard)
		}
	case models.StateChoosingSplitMode:
		switch ev.Token {
		case TokenSplitSingle, TokenSplitDouble:
			se.Plan = models.Plan{Kind: models.PlanSingle}
			if ev.Token == TokenSplitDouble {
				se.Plan.Kind = models.PlanDouble
			}
			if se.PendingFile != nil {
				m.progress(ctx, ev)
				return m.runSplit(ctx, se, []models.Attachment{*se.PendingFile})
			}
			se.State = models.StateAwaitingSplitFile
			se.AwaitingFileFor = models.TargetSplit
			return m.reply(ctx, ev, textSendSplitFile, backKeyboard)
		case TokenSplitCustom:
			se.State = models.StateAwaitingCustomOrder
			return m.reply(ctx, ev, textAskOrder, backKeyboard)
		}
	case models.StateAwaitingCombineFiles:
		if ev.Token == TokenProcessDone {
			if len(se.Files) < 2 {
				se.AwaitingFileFor = models.TargetCombine
				return m.say(ctx, se.ChatID, textNeedTwoFiles, nil)
			}
			m.progress(ctx, ev)
			return m.runCombine(ctx, se)
		}
	case models.StateAwaitingUniqueFiles:
		if ev.Token == TokenProcessDone {
			if len(se.Files) == 0 {
				se.AwaitingFileFor = models.TargetAssemblyUnique
				return m.say(ctx, se.ChatID, textNeedUniqueFile, nil)
			}
			m.progress(ctx, ev)
			return m.runAssemble(ctx, se)
		}
	case models.StateChoosingBatchAction:
		switch ev.Token {
		case TokenGroupCombine:
			m.progress(ctx, ev)
			return m.runCombine(ctx, se)
		case TokenGroupSplit:
			m.progress(ctx, ev)
			se.Plan = models.Plan{Kind: models.PlanSingle}
			return m.runSplit(ctx, se, se.Files)
		}
	}
	return m.say(ctx, se.ChatID, textUnexpected, nil)
}

func (m *Machine) onText(ctx context.Context, se *models.Session, ev Event) error {
	switch se.State {
	case models.StateAwaitingCustomOrder:
		segments, err := pagerange.ParseSplitPlan(ev.Text)
		if err != nil {
			return m.say(ctx, se.ChatID, textBadOrder, nil)
		}
		se.Plan = models.Plan{Kind: models.PlanCustom, Segments: segments}
		if se.PendingFile != nil {
			m.notify(ctx, se.ChatID, textProcessing)
			return m.runSplit(ctx, se, []models.Attachment{*se.PendingFile})
		}
		se.State = models.StateAwaitingSplitFile
		se.AwaitingFileFor = models.TargetSplit
		return m.say(ctx, se.ChatID, fmt.Sprintf(textOrderAccepted, ev.Text), backKeyboard)
	case models.StateAwaitingPageRange:
		if !pagerange.Valid(ev.Text) || se.PendingFile == nil {
			return m.say(ctx, se.ChatID, textBadPageRange, backKeyboard)
		}
		return m.runRasterize(ctx, se, ev.Text)
	case models.StateAwaitingSplitFile, models.StateAwaitingCombineFiles, models.StateAwaitingCommonFile,
		models.StateAwaitingUniqueFiles, models.StateAwaitingRasterizeFile:
		return m.say(ctx, se.ChatID, textExpectingFile, nil)
	default:
		return m.say(ctx, se.ChatID, textUnexpected, nil)
	}
}

// onAttachment routes one PDF by the session's tag, or starts the split
// shortcut when the chat is idle.
func (m *Machine) onAttachment(ctx context.Context, se *models.Session, att models.Attachment) error {
	switch se.TakeTarget() {
	case models.TargetSplit:
		m.notify(ctx, se.ChatID, textFileProcessing)
		return m.runSplit(ctx, se, []models.Attachment{att})
	case models.TargetCombine:
		se.Files = append(se.Files, att)
		se.AwaitingFileFor = models.TargetCombine
		return m.say(ctx, se.ChatID, fmt.Sprintf(textFileAdded, att.FileName, len(se.Files)), doneKeyboard("✅ Все файлы отправлены"))
	case models.TargetAssemblyCommon:
		m.acceptCommon(se, att, nil)
		return m.say(ctx, se.ChatID, textCommonAccepted, doneKeyboard("✅ Собрать файлы"))
	case models.TargetAssemblyUnique:
		se.Files = append(se.Files, att)
		se.AwaitingFileFor = models.TargetAssemblyUnique
		return m.say(ctx, se.ChatID, fmt.Sprintf(textFileAdded, att.FileName, len(se.Files)), doneKeyboard("✅ Собрать файлы"))
	case models.TargetRasterize:
		se.PendingFile = &att
		se.State = models.StateAwaitingPageRange
		return m.say(ctx, se.ChatID, textAskPageRange, backKeyboard)
	}

	if se.State != models.StateIdle {
		return m.say(ctx, se.ChatID, textUnexpected, nil)
	}
	se.PendingFile = &att
	se.State = models.StateChoosingSplitMode
	return m.say(ctx, se.ChatID, fmt.Sprintf(textGotFile, displayName(att)), splitModeKeyboard("« Отмена"))
}

// onBatch handles a closed media group.
func (m *Machine) onBatch(ctx context.Context, se *models.Session, members []models.Attachment) error {
	if len(members) == 0 {
		return nil
	}
	for _, att := range members {
		if !att.IsPDF() {
			se.Reset()
			return m.say(ctx, se.ChatID, textBatchNotPDF, nil)
		}
	}
	if len(members) == 1 {
		return m.onAttachment(ctx, se, members[0])
	}

	switch target := se.TakeTarget(); {
	case target.Collects():
		se.Files = append(se.Files, members...)
		se.AwaitingFileFor = target
		done := "✅ Все файлы отправлены"
		if target == models.TargetAssemblyUnique {
			done = "✅ Собрать файлы"
		}
		return m.say(ctx, se.ChatID, fmt.Sprintf(textFilesAdded, len(members), len(se.Files)), doneKeyboard(done))
	case target == models.TargetAssemblyCommon:
		m.acceptCommon(se, members[0], members[1:])
		return m.say(ctx, se.ChatID, fmt.Sprintf(textCommonFromBatch, displayName(members[0]), len(members)-1), doneKeyboard("✅ Собрать файлы"))
	case target == models.TargetSplit && se.Plan.Kind != models.PlanNone:
		m.notify(ctx, se.ChatID, textFileProcessing)
		return m.runSplit(ctx, se, members)
	}

	se.Reset()
	se.Files = append(se.Files, members...)
	se.State = models.StateChoosingBatchAction
	return m.say(ctx, se.ChatID, fmt.Sprintf(textGotBatch, len(members)), batchKeyboard)
}

func (m *Machine) acceptCommon(se *models.Session, common models.Attachment, uniques []models.Attachment) {
	se.CommonFile = &common
	se.Files = append([]models.Attachment(nil), uniques...)
	se.State = models.StateAwaitingUniqueFiles
	se.AwaitingFileFor = models.TargetAssemblyUnique
}

func (m *Machine) runSplit(ctx context.Context, se *models.Session, files []models.Attachment) error {
	plan := se.Plan
	var err error
	for _, f := range files {
		file := f
		err = m.execute(ctx, se.ChatID, models.OperationSplit, 1, func(sink executor.Sink) (int, error) {
			return m.ops.Split(ctx, file, plan, sink)
		})
		if err != nil {
			break
		}
	}
	return m.finish(ctx, se, err, textSplitDone)
}

func (m *Machine) runCombine(ctx context.Context, se *models.Session) error {
	files := se.Files
	err := m.execute(ctx, se.ChatID, models.OperationCombine, len(files), func(sink executor.Sink) (int, error) {
		return m.ops.Combine(ctx, files, sink)
	})
	if errors.Is(err, executor.ErrTooFewFiles) {
		se.AwaitingFileFor = models.TargetCombine
		return m.say(ctx, se.ChatID, textNeedTwoFiles, nil)
	}
	return m.finish(ctx, se, err, textCombineDone)
}

func (m *Machine) runAssemble(ctx context.Context, se *models.Session) error {
	common, uniques := se.CommonFile, se.Files
	err := m.execute(ctx, se.ChatID, models.OperationAssemble, len(uniques)+1, func(sink executor.Sink) (int, error) {
		return m.ops.Assemble(ctx, common, uniques, sink)
	})
	return m.finish(ctx, se, err, textAssembleDone)
}

func (m *Machine) runRasterize(ctx context.Context, se *models.Session, selection string) error {
	file := *se.PendingFile
	err := m.execute(ctx, se.ChatID, models.OperationRasterize, 1, func(sink executor.Sink) (int, error) {
		return m.ops.Rasterize(ctx, file, func(pageCount int) []int {
			return pagerange.Parse(selection, pageCount)
		}, sink)
	})
	if errors.Is(err, executor.ErrNoPagesSelected) {
		return m.say(ctx, se.ChatID, textBadPageRange, backKeyboard)
	}
	return m.finish(ctx, se, err, textRasterizeDone)
}

// execute runs one operation, delivering outputs to the chat, and journals
// the outcome. Validation failures are not journaled.
func (m *Machine) execute(ctx context.Context, chatID int64, kind models.OperationKind, inputs int, fn func(executor.Sink) (int, error)) error {
	op := &models.Operation{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Kind:      kind,
		Inputs:    inputs,
		StartedAt: time.Now(),
	}
	sink := func(ctx context.Context, doc executor.Document) error {
		return m.outbox.SendDocument(ctx, chatID, doc)
	}

	outputs, err := fn(sink)
	if executor.Classify(err) == executor.ClassUserInput {
		return err
	}

	op.Outputs = outputs
	op.FinishedAt = time.Now()
	op.Status = models.OperationSucceeded
	log := m.logger.WithFields(logrus.Fields{
		"chat_id":      chatID,
		"operation":    kind,
		"operation_id": op.ID,
		"outputs":      outputs,
		"duration":     op.FinishedAt.Sub(op.StartedAt).String(),
	})
	if err != nil {
		op.Status = models.OperationFailed
		op.Error = err.Error()
		log.WithError(err).WithField("class", executor.Classify(err).String()).Error("operation failed")
	} else {
		log.Info("operation finished")
	}

	if m.journal != nil {
		if jerr := m.journal.Record(ctx, op); jerr != nil {
			log.WithError(jerr).Warn("journal write failed")
		}
	}
	return err
}

// finish reports the outcome and returns the chat to the menu.
func (m *Machine) finish(ctx context.Context, se *models.Session, opErr error, doneText string) error {
	se.Reset()
	text := doneText
	if opErr != nil {
		text = textFailed
	}
	if err := m.say(ctx, se.ChatID, text, nil); err != nil {
		return err
	}
	return m.say(ctx, se.ChatID, textAnythingElse, mainKeyboard)
}

// progress replaces the pressed button's message with a "working" notice.
func (m *Machine) progress(ctx context.Context, ev Event) {
	if err := m.reply(ctx, ev, textProcessing, nil); err != nil {
		m.logger.WithError(err).WithField("chat_id", ev.ChatID).Warn("progress notice not delivered")
	}
}

// notify sends a message whose loss does not change the outcome.
func (m *Machine) notify(ctx context.Context, chatID int64, text string) {
	if err := m.say(ctx, chatID, text, nil); err != nil {
		m.logger.WithError(err).WithField("chat_id", chatID).Warn("progress notice not delivered")
	}
}

// reply edits the message carrying the pressed button, or sends a new one.
func (m *Machine) reply(ctx context.Context, ev Event, text string, kb Keyboard) error {
	if ev.Kind == EventButton && ev.MessageID != 0 {
		err := m.outbox.EditText(ctx, ev.ChatID, ev.MessageID, text, kb)
		if err == nil {
			return nil
		}
		m.logger.WithError(err).WithField("chat_id", ev.ChatID).Debug("edit failed, sending instead")
	}
	return m.say(ctx, ev.ChatID, text, kb)
}

func (m *Machine) say(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	if err := m.outbox.SendText(ctx, chatID, text, kb); err != nil {
		return &executor.TransportError{Op: "send text", Err: err}
	}
	return nil
}

func displayName(att models.Attachment) string {
	if att.FileName == "" {
		return "document.pdf"
	}
	return att.FileName
}
