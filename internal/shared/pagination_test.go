package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePage(t *testing.T) {
	cases := []struct {
		name                  string
		page, perPage         int
		wantPage, wantPerPage int
	}{
		{"defaults", 0, 0, 1, 20},
		{"caps per page", 2, 500, 2, 100},
		{"caps page", 1 << 62, 100, MaxPage, 100},
		{"negative page", -3, 10, 1, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, perPage := NormalizePage(tc.page, tc.perPage)
			assert.Equal(t, tc.wantPage, page)
			assert.Equal(t, tc.wantPerPage, perPage)
		})
	}
}

func TestOffsetFitsInt32AtMaxPage(t *testing.T) {
	p := NewPagination(1<<62, 1000, 0)
	assert.Equal(t, MaxPage, p.Page)
	assert.Less(t, p.Offset(), 1<<31-1)
	assert.Positive(t, p.Offset())
}
