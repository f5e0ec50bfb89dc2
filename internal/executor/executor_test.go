package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfbot/internal/engine"
	"pdfbot/internal/models"
)

// fakeEngine treats file content as "<label>:<pages>".
type fakeEngine struct {
	mu         sync.Mutex
	open       int
	closed     int
	failOn     string
	failConcat bool
}

type fakeDoc struct {
	eng   *fakeEngine
	label string
	pages int
}

func (f *fakeEngine) Open(data []byte) (engine.Document, error) {
	label, count, ok := strings.Cut(string(data), ":")
	if !ok {
		return nil, errors.New("not a document")
	}
	var pages int
	fmt.Sscanf(count, "%d", &pages)
	f.mu.Lock()
	f.open++
	f.mu.Unlock()
	return &fakeDoc{eng: f, label: label, pages: pages}, nil
}

func (f *fakeEngine) Concat(docs ...engine.Document) ([]byte, error) {
	if f.failConcat {
		return nil, errors.New("concat broke")
	}
	labels := make([]string, 0, len(docs))
	for _, d := range docs {
		labels = append(labels, d.(*fakeDoc).label)
	}
	return []byte(strings.Join(labels, "+")), nil
}

func (f *fakeEngine) balanced() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open == f.closed
}

func (d *fakeDoc) PageCount() int { return d.pages }

func (d *fakeDoc) ExtractPages(indices []int) ([]byte, error) {
	if d.eng.failOn == "extract" && len(indices) > 0 && indices[0] > 0 {
		return nil, errors.New("extract broke")
	}
	return []byte(fmt.Sprintf("%s%v", d.label, indices)), nil
}

func (d *fakeDoc) RenderPage(index int, dpi float64) ([]byte, error) {
	if d.eng.failOn == "render" {
		return nil, errors.New("render broke")
	}
	return []byte(fmt.Sprintf("%s@%d/%v", d.label, index, dpi)), nil
}

func (d *fakeDoc) Close() error {
	d.eng.mu.Lock()
	d.eng.closed++
	d.eng.mu.Unlock()
	return nil
}

type mapSource map[string]string

func (m mapSource) Fetch(_ context.Context, att models.Attachment) ([]byte, error) {
	data, ok := m[att.FileID]
	if !ok {
		return nil, errors.New("file expired")
	}
	return []byte(data), nil
}

type collector struct {
	docs   []Document
	failAt int
	calls  int
}

func (c *collector) sink(_ context.Context, doc Document) error {
	c.calls++
	if c.failAt > 0 && c.calls == c.failAt {
		return errors.New("upload failed")
	}
	c.docs = append(c.docs, doc)
	return nil
}

func (c *collector) names() []string {
	out := make([]string, 0, len(c.docs))
	for _, d := range c.docs {
		out = append(out, d.Name)
	}
	return out
}

func newTestExecutor(eng *fakeEngine, src mapSource) *Executor {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(eng, src, 0, logger)
}

func att(id, name string) models.Attachment {
	return models.Attachment{FileID: id, FileName: name, MimeType: models.MimePDF}
}

func TestSplitDouble(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"r": "report:5"})
	var out collector

	n, err := ex.Split(context.Background(), att("r", "report.pdf"), models.Plan{Kind: models.PlanDouble}, out.sink)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"report_part_1.pdf", "report_part_2.pdf", "report_part_3.pdf"}, out.names())
	assert.Equal(t, "report[4]", string(out.docs[2].Data))
	assert.True(t, eng.balanced())
}

func TestSplitCustomLeavesRemainder(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"r": "r:10"})
	var out collector

	n, err := ex.Split(context.Background(), att("r", "r.pdf"), models.Plan{Kind: models.PlanCustom, Segments: []int{3, 3}}, out.sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "r[0 1 2]", string(out.docs[0].Data))
	assert.Equal(t, "r[3 4 5]", string(out.docs[1].Data))
}

func TestSplitWithoutPlan(t *testing.T) {
	ex := newTestExecutor(&fakeEngine{}, mapSource{})
	_, err := ex.Split(context.Background(), att("r", "r.pdf"), models.Plan{}, (&collector{}).sink)
	assert.ErrorIs(t, err, ErrNoPlan)
	assert.Equal(t, ClassUserInput, Classify(err))
}

func TestSplitAbortsOnEngineFailureAndKeepsSent(t *testing.T) {
	eng := &fakeEngine{failOn: "extract"}
	ex := newTestExecutor(eng, mapSource{"r": "r:4"})
	var out collector

	n, err := ex.Split(context.Background(), att("r", "r.pdf"), models.Plan{Kind: models.PlanSingle}, out.sink)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"r_part_1.pdf"}, out.names())
	assert.Equal(t, ClassEngine, Classify(err))
	assert.True(t, eng.balanced())
}

func TestCombineNeedsTwoFiles(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"a": "a:1"})
	_, err := ex.Combine(context.Background(), []models.Attachment{att("a", "a.pdf")}, (&collector{}).sink)
	assert.ErrorIs(t, err, ErrTooFewFiles)
	assert.Equal(t, 0, eng.open)
}

func TestCombineKeepsOrder(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"a": "a:1", "b": "b:2", "c": "c:3"})
	var out collector

	n, err := ex.Combine(context.Background(), []models.Attachment{att("c", "c.pdf"), att("a", "a.pdf"), att("b", "b.pdf")}, out.sink)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, out.docs, 1)
	assert.Equal(t, CombinedName, out.docs[0].Name)
	assert.Equal(t, "c+a+b", string(out.docs[0].Data))
	assert.True(t, eng.balanced())
}

func TestCombineReleasesHandlesOnFetchFailure(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"a": "a:1"})
	_, err := ex.Combine(context.Background(), []models.Attachment{att("a", "a.pdf"), att("gone", "gone.pdf")}, (&collector{}).sink)
	require.Error(t, err)
	assert.Equal(t, ClassTransport, Classify(err))
	assert.Equal(t, 1, eng.open)
	assert.True(t, eng.balanced())
}

func TestAssemble(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"c": "common:2", "x": "X:1", "y": "Y:3"})
	var out collector
	common := att("c", "cover.pdf")

	n, err := ex.Assemble(context.Background(), &common, []models.Attachment{att("x", "X.pdf"), att("y", "Y.pdf")}, out.sink)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"assembled_X.pdf", "assembled_Y.pdf"}, out.names())
	assert.Equal(t, "X+common", string(out.docs[0].Data))
	assert.Equal(t, "Y+common", string(out.docs[1].Data))
	assert.Equal(t, 3, eng.open)
	assert.True(t, eng.balanced())
}

func TestAssembleValidation(t *testing.T) {
	ex := newTestExecutor(&fakeEngine{}, mapSource{})
	common := att("c", "c.pdf")

	_, err := ex.Assemble(context.Background(), &common, nil, (&collector{}).sink)
	assert.ErrorIs(t, err, ErrNoUniqueFiles)
	_, err = ex.Assemble(context.Background(), nil, []models.Attachment{att("x", "x.pdf")}, (&collector{}).sink)
	assert.ErrorIs(t, err, ErrNoCommonFile)
}

func TestAssembleStopsOnConcatFailure(t *testing.T) {
	eng := &fakeEngine{failConcat: true}
	ex := newTestExecutor(eng, mapSource{"c": "c:1", "x": "x:1", "y": "y:1"})
	var out collector
	common := att("c", "c.pdf")

	n, err := ex.Assemble(context.Background(), &common, []models.Attachment{att("x", "x.pdf"), att("y", "y.pdf")}, out.sink)
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Empty(t, out.docs)
	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "x.pdf", engErr.File)
	assert.True(t, eng.balanced())
}

func TestRasterize(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"s": "scan:6"})
	var out collector

	var seenCount int
	n, err := ex.Rasterize(context.Background(), att("s", "scan.pdf"), func(pageCount int) []int {
		seenCount = pageCount
		return []int{0, 2}
	}, out.sink)
	require.NoError(t, err)
	assert.Equal(t, 6, seenCount)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"scan_page_1.png", "scan_page_3.png"}, out.names())
	assert.Equal(t, "scan@2/150", string(out.docs[1].Data))
	assert.True(t, eng.balanced())
}

func TestRasterizeEmptySelection(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"s": "scan:2"})
	_, err := ex.Rasterize(context.Background(), att("s", "scan.pdf"), func(int) []int { return nil }, (&collector{}).sink)
	assert.ErrorIs(t, err, ErrNoPagesSelected)
	assert.True(t, eng.balanced())
}

func TestSinkFailureIsTransport(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, mapSource{"s": "s:3"})
	out := collector{failAt: 2}

	n, err := ex.Rasterize(context.Background(), att("s", "s.pdf"), func(int) []int { return []int{0, 1, 2} }, out.sink)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, ClassTransport, Classify(err))
	assert.True(t, eng.balanced())
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ClassNone, Classify(nil))
	assert.Equal(t, ClassUserInput, Classify(fmt.Errorf("wrapped: %w", ErrTooFewFiles)))
	assert.Equal(t, ClassEngine, Classify(errors.New("mystery")))
	assert.Equal(t, ClassTransport, Classify(&TransportError{Op: "send", Err: io.EOF}))
}
