package source

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestLess(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"page2", "page10", true},
		{"page10", "page2", false},
		{"page02", "page2", true},
		{"page2", "page02", false},
		{"p1.jpg", "p001.jpg", false},
		{"a", "b", true},
		{"img", "img1", true},
		{"1", "a", true},
		{"vol1/page9", "vol1/page10", true},
		{"vol2/page1", "vol10/page1", true},
		{"a/z", "a b/a", true},
		{"same", "same", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, Less(tt.a, tt.b))
		})
	}
}

func TestSortPages(t *testing.T) {
	pages := []string{"p10.jpg", "p1.jpg", "p2.jpg", "cover.png", "p001.jpg"}
	slices.SortFunc(pages, Compare)
	assert.Equal(t, []string{"cover.png", "p001.jpg", "p1.jpg", "p2.jpg", "p10.jpg"}, pages)
}

func TestCompareIsAntisymmetric(t *testing.T) {
	properties := gopter.NewProperties(nil)

	name := gen.RegexMatch(`[a-c0-9/]{0,8}`)
	properties.Property("Compare(a,b) == -Compare(b,a)", prop.ForAll(
		func(a, b string) bool {
			return Compare(a, b) == -Compare(b, a)
		},
		name, name,
	))
	properties.Property("Compare(a,a) == 0", prop.ForAll(
		func(a string) bool {
			return Compare(a, a) == 0
		},
		name,
	))

	properties.TestingRun(t)
}
