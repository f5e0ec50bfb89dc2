package models

// PlanKind selects how a document is cut into parts.
type PlanKind int

const (
	PlanNone PlanKind = iota
	PlanSingle
	PlanDouble
	PlanCustom
)

func (k PlanKind) String() string {
	switch k {
	case PlanSingle:
		return "single"
	case PlanDouble:
		return "double"
	case PlanCustom:
		return "custom"
	default:
		return "none"
	}
}

// Plan describes a split. Segments is only used by PlanCustom.
type Plan struct {
	Kind     PlanKind
	Segments []int
}

// PageRange is a half-open range of zero-based page indices.
type PageRange struct {
	Start int
	End   int
}

func (r PageRange) Len() int {
	return r.End - r.Start
}

// Indices expands the range.
func (r PageRange) Indices() []int {
	if r.End <= r.Start {
		return nil
	}
	out := make([]int, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		out = append(out, i)
	}
	return out
}

// Partition cuts [0, pageCount) into the parts the plan describes. Parts are
// never empty; custom segments crossing the end are truncated and anything past
// the last page is dropped.
func (p Plan) Partition(pageCount int) []PageRange {
	if pageCount <= 0 {
		return nil
	}
	switch p.Kind {
	case PlanSingle:
		return fixedParts(pageCount, 1)
	case PlanDouble:
		return fixedParts(pageCount, 2)
	case PlanCustom:
		var parts []PageRange
		cursor := 0
		for _, size := range p.Segments {
			if cursor >= pageCount {
				break
			}
			if size <= 0 {
				continue
			}
			// cap before adding so huge segments cannot overflow
			if size > pageCount-cursor {
				size = pageCount - cursor
			}
			parts = append(parts, PageRange{Start: cursor, End: cursor + size})
			cursor += size
		}
		return parts
	default:
		return nil
	}
}

func fixedParts(pageCount, size int) []PageRange {
	parts := make([]PageRange, 0, (pageCount+size-1)/size)
	for start := 0; start < pageCount; start += size {
		parts = append(parts, PageRange{Start: start, End: min(start+size, pageCount)})
	}
	return parts
}
