package pagerange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		pages int
		want  []int
	}{
		{"range and single", "1-3, 5", 10, []int{0, 1, 2, 4}},
		{"all english", "all", 5, []int{0, 1, 2, 3, 4}},
		{"all russian", "все", 5, []int{0, 1, 2, 3, 4}},
		{"all mixed case", "ВСЕ", 3, []int{0, 1, 2}},
		{"all uppercase", " ALL ", 2, []int{0, 1}},
		{"both out of range", "0,99", 5, nil},
		{"unordered with duplicates", "5,1-2,2,5", 6, []int{0, 1, 4}},
		{"range clipped at end", "4-9", 5, []int{3, 4}},
		{"reversed range yields nothing", "4-2", 5, nil},
		{"reversed range next to valid", "4-2,1", 5, []int{0}},
		{"garbage token rejects all", "1,a,3", 5, nil},
		{"bad range rejects all", "1-x", 5, nil},
		{"empty token rejects all", "1,,2", 5, nil},
		{"empty", "  ", 5, nil},
		{"no pages", "1", 0, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Parse(tc.text, tc.pages)
			if tc.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("1-3,5"))
	assert.True(t, Valid("Все"))
	assert.True(t, Valid("0"))
	assert.False(t, Valid(""))
	assert.False(t, Valid("first page"))
	assert.False(t, Valid("1,"))
}

func TestParseSplitPlan(t *testing.T) {
	got, err := ParseSplitPlan("3,3,4")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 4}, got)

	got, err = ParseSplitPlan(" 2 , 5,1 ")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 5, 1}, got)

	got, err = ParseSplitPlan("0,2")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, got)

	for _, bad := range []string{"3, a, 4", "3;4", "-1,2", "3,", ",3", "", "3 4", "1.5"} {
		got, err := ParseSplitPlan(bad)
		assert.ErrorIs(t, err, ErrInvalidOrder, "input %q", bad)
		assert.Nil(t, got, "input %q", bad)
	}
}
