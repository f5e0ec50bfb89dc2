// Package executor runs the document operations against the PDF engine.
package executor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"pdfbot/internal/engine"
	"pdfbot/internal/models"
)

// DefaultDPI is the resolution pages are rasterized at.
const DefaultDPI = 150

// CombinedName is the output name of a combine operation.
const CombinedName = "combined_document.pdf"

// Document is one produced output.
type Document struct {
	Name string
	Data []byte
}

// Sink delivers outputs in order. An error stops the operation.
type Sink func(ctx context.Context, doc Document) error

// Source fetches attachment content.
type Source interface {
	Fetch(ctx context.Context, att models.Attachment) ([]byte, error)
}

// PageSelector picks zero-based pages once the page count is known.
type PageSelector func(pageCount int) []int

// Executor performs split, combine, assemble and rasterize. It never retries;
// the first failure aborts the remaining work and outputs already emitted stay.
type Executor struct {
	engine engine.Engine
	source Source
	dpi    float64
	logger logrus.FieldLogger
}

func New(eng engine.Engine, source Source, dpi float64, logger logrus.FieldLogger) *Executor {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Executor{engine: eng, source: source, dpi: dpi, logger: logger}
}

func (e *Executor) open(ctx context.Context, att models.Attachment) (engine.Document, error) {
	data, err := e.source.Fetch(ctx, att)
	if err != nil {
		return nil, &TransportError{Op: "fetch", File: att.FileName, Err: err}
	}
	doc, err := e.engine.Open(data)
	if err != nil {
		return nil, &EngineError{Op: "open", File: att.FileName, Err: err}
	}
	return doc, nil
}

func emit(ctx context.Context, sink Sink, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sink(ctx, doc); err != nil {
		return &TransportError{Op: "send", File: doc.Name, Err: err}
	}
	return nil
}

// Split cuts file into the parts described by plan and emits them in page order.
// It returns the number of parts emitted.
func (e *Executor) Split(ctx context.Context, file models.Attachment, plan models.Plan, sink Sink) (int, error) {
	if plan.Kind == models.PlanNone {
		return 0, ErrNoPlan
	}
	doc, err := e.open(ctx, file)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	parts := plan.Partition(doc.PageCount())
	e.logger.WithFields(logrus.Fields{
		"file":  file.FileName,
		"pages": doc.PageCount(),
		"plan":  plan.Kind.String(),
		"parts": len(parts),
	}).Debug("splitting document")

	sent := 0
	for i, part := range parts {
		data, err := doc.ExtractPages(part.Indices())
		if err != nil {
			return sent, &EngineError{Op: "extract", File: file.FileName, Err: err}
		}
		name := fmt.Sprintf("%s_part_%d.%s", file.BaseName(), i+1, file.Ext())
		if err := emit(ctx, sink, Document{Name: name, Data: data}); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// Combine concatenates files in the order given into a single document.
func (e *Executor) Combine(ctx context.Context, files []models.Attachment, sink Sink) (int, error) {
	if len(files) < 2 {
		return 0, ErrTooFewFiles
	}
	docs := make([]engine.Document, 0, len(files))
	defer func() {
		for _, d := range docs {
			d.Close()
		}
	}()
	for _, f := range files {
		doc, err := e.open(ctx, f)
		if err != nil {
			return 0, err
		}
		docs = append(docs, doc)
	}

	data, err := e.engine.Concat(docs...)
	if err != nil {
		return 0, &EngineError{Op: "concat", File: CombinedName, Err: err}
	}
	if err := emit(ctx, sink, Document{Name: CombinedName, Data: data}); err != nil {
		return 0, err
	}
	return 1, nil
}

// Assemble appends the common file to every unique file, emitting one document
// per unique file in order.
func (e *Executor) Assemble(ctx context.Context, common *models.Attachment, uniques []models.Attachment, sink Sink) (int, error) {
	if common == nil {
		return 0, ErrNoCommonFile
	}
	if len(uniques) == 0 {
		return 0, ErrNoUniqueFiles
	}
	commonDoc, err := e.open(ctx, *common)
	if err != nil {
		return 0, err
	}
	defer commonDoc.Close()

	sent := 0
	for _, u := range uniques {
		n, err := e.assembleOne(ctx, commonDoc, u, sink)
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

func (e *Executor) assembleOne(ctx context.Context, common engine.Document, unique models.Attachment, sink Sink) (int, error) {
	doc, err := e.open(ctx, unique)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	data, err := e.engine.Concat(doc, common)
	if err != nil {
		return 0, &EngineError{Op: "concat", File: unique.FileName, Err: err}
	}
	name := "assembled_" + unique.FileName
	if unique.FileName == "" {
		name = "assembled_document.pdf"
	}
	if err := emit(ctx, sink, Document{Name: name, Data: data}); err != nil {
		return 0, err
	}
	return 1, nil
}

// Rasterize renders the selected pages to PNG in ascending order.
func (e *Executor) Rasterize(ctx context.Context, file models.Attachment, selectPages PageSelector, sink Sink) (int, error) {
	doc, err := e.open(ctx, file)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	pages := selectPages(doc.PageCount())
	if len(pages) == 0 {
		return 0, ErrNoPagesSelected
	}

	sent := 0
	for _, idx := range pages {
		img, err := doc.RenderPage(idx, e.dpi)
		if err != nil {
			return sent, &EngineError{Op: "render", File: file.FileName, Err: err}
		}
		name := fmt.Sprintf("%s_page_%d.png", file.BaseName(), idx+1)
		if err := emit(ctx, sink, Document{Name: name, Data: img}); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
