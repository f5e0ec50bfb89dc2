// Package engine wraps the PDF libraries behind the small surface the executors need.
package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Engine opens documents and concatenates them.
type Engine interface {
	Open(data []byte) (Document, error)
	Concat(docs ...Document) ([]byte, error)
}

// Document is an opened PDF. It belongs to one caller and must be closed.
type Document interface {
	PageCount() int
	ExtractPages(indices []int) ([]byte, error)
	RenderPage(index int, dpi float64) ([]byte, error)
	Close() error
}

var (
	ErrNoPages         = errors.New("document has no pages")
	ErrPageOutOfRange  = errors.New("page index out of range")
	ErrForeignDocument = errors.New("document was not opened by this engine")
	ErrClosed          = errors.New("document already closed")
)

var disableConfigDir sync.Once

// PDF is the pdfcpu/MuPDF backed engine.
type PDF struct {
	conf model.Configuration
}

// New builds the engine. pdfcpu is kept away from the user's config directory.
func New() *PDF {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDF{conf: *conf}
}

// newConf copies base for one pdfcpu call; pdfcpu writes Cmd and
// ValidationMode on the configuration it is given.
func newConf(base model.Configuration) *model.Configuration {
	c := base
	return &c
}

type pdfDocument struct {
	raw    []byte
	pages  int
	conf   model.Configuration
	fitz   *fitz.Document
	closed bool
}

// Open validates the stream and counts its pages.
func (e *PDF) Open(data []byte) (Document, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), newConf(e.conf))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, ErrNoPages
	}
	return &pdfDocument{raw: data, pages: ctx.PageCount, conf: e.conf}, nil
}

// Concat joins the pages of docs in order.
func (e *PDF) Concat(docs ...Document) ([]byte, error) {
	if len(docs) == 0 {
		return nil, ErrNoPages
	}
	readers := make([]io.ReadSeeker, 0, len(docs))
	for _, d := range docs {
		pd, ok := d.(*pdfDocument)
		if !ok {
			return nil, ErrForeignDocument
		}
		if pd.closed {
			return nil, ErrClosed
		}
		readers = append(readers, bytes.NewReader(pd.raw))
	}
	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, newConf(e.conf)); err != nil {
		return nil, fmt.Errorf("merge pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (d *pdfDocument) PageCount() int {
	return d.pages
}

// ExtractPages writes a new document holding the given zero-based pages.
func (d *pdfDocument) ExtractPages(indices []int) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if len(indices) == 0 {
		return nil, ErrNoPages
	}
	for _, idx := range indices {
		if idx < 0 || idx >= d.pages {
			return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, idx, d.pages)
		}
	}
	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.raw), &buf, Selection(indices), newConf(d.conf)); err != nil {
		return nil, fmt.Errorf("extract pages: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderPage rasterizes one zero-based page to PNG.
func (d *pdfDocument) RenderPage(index int, dpi float64) ([]byte, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if index < 0 || index >= d.pages {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, index, d.pages)
	}
	if d.fitz == nil {
		doc, err := fitz.NewFromMemory(d.raw)
		if err != nil {
			return nil, fmt.Errorf("open for render: %w", err)
		}
		d.fitz = doc
	}
	img, err := d.fitz.ImagePNG(index, dpi)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", index+1, err)
	}
	return img, nil
}

func (d *pdfDocument) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.raw = nil
	if d.fitz != nil {
		err := d.fitz.Close()
		d.fitz = nil
		return err
	}
	return nil
}

// Selection turns zero-based indices into pdfcpu's 1-based selection strings,
// collapsing consecutive runs into ranges.
func Selection(indices []int) []string {
	var out []string
	for i := 0; i < len(indices); {
		j := i
		for j+1 < len(indices) && indices[j+1] == indices[j]+1 {
			j++
		}
		start, end := indices[i]+1, indices[j]+1
		if start == end {
			out = append(out, strconv.Itoa(start))
		} else {
			out = append(out, strconv.Itoa(start)+"-"+strconv.Itoa(end))
		}
		i = j + 1
	}
	return out
}
