// Package pagerange turns user-typed page selections and split orders into indices.
package pagerange

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidOrder is returned when a split order does not match "N,N,...".
var ErrInvalidOrder = errors.New("split order must be comma-separated numbers")

var splitOrderPattern = regexp.MustCompile(`^\d+(\s*,\s*\d+)*$`)

var allKeywords = []string{"all", "все"}

// Parse resolves a selection such as "1-3, 5" into ascending zero-based page
// indices. Numbers outside [1, pageCount] are dropped. A token that is neither a
// number nor a range invalidates the whole input and yields an empty result.
func Parse(text string, pageCount int) []int {
	text = strings.TrimSpace(text)
	if text == "" || pageCount <= 0 {
		return nil
	}
	for _, kw := range allKeywords {
		if strings.EqualFold(text, kw) {
			all := make([]int, pageCount)
			for i := range all {
				all[i] = i
			}
			return all
		}
	}

	seen := make(map[int]struct{})
	for _, token := range strings.Split(text, ",") {
		start, end, ok := parseToken(token)
		if !ok {
			return nil
		}
		for page := max(start, 1); page <= end && page <= pageCount; page++ {
			seen[page-1] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil
	}
	result := make([]int, 0, len(seen))
	for idx := range seen {
		result = append(result, idx)
	}
	sort.Ints(result)
	return result
}

// Valid reports whether the selection is syntactically acceptable, without
// knowing the page count yet.
func Valid(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	for _, kw := range allKeywords {
		if strings.EqualFold(text, kw) {
			return true
		}
	}
	for _, token := range strings.Split(text, ",") {
		if _, _, ok := parseToken(token); !ok {
			return false
		}
	}
	return true
}

func parseToken(token string) (int, int, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, 0, false
	}
	if from, to, found := strings.Cut(token, "-"); found {
		start, err := strconv.Atoi(strings.TrimSpace(from))
		if err != nil {
			return 0, 0, false
		}
		end, err := strconv.Atoi(strings.TrimSpace(to))
		if err != nil {
			return 0, 0, false
		}
		return start, end, true
	}
	page, err := strconv.Atoi(token)
	if err != nil {
		return 0, 0, false
	}
	return page, page, true
}

// ParseSplitPlan parses a custom split order such as "3,3,4" into segment
// lengths. Anything that does not match the grammar exactly is rejected as a whole.
func ParseSplitPlan(text string) ([]int, error) {
	text = strings.TrimSpace(text)
	if !splitOrderPattern.MatchString(text) {
		return nil, ErrInvalidOrder
	}
	parts := strings.Split(text, ",")
	segments := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, ErrInvalidOrder
		}
		segments = append(segments, n)
	}
	return segments, nil
}
