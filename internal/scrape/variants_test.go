package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLVariants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "path with trailing slash",
			in:   "https://acme.com/about/",
			want: []string{
				"https://acme.com/about/",
				"https://acme.com/about",
				"https://www.acme.com/about/",
				"https://www.acme.com/about",
			},
		},
		{
			name: "www host without slash",
			in:   "https://www.acme.com/solutions",
			want: []string{
				"https://www.acme.com/solutions",
				"https://www.acme.com/solutions/",
				"https://acme.com/solutions",
				"https://acme.com/solutions/",
			},
		},
		{
			name: "root",
			in:   "https://acme.com/",
			want: []string{
				"https://acme.com/",
				"https://acme.com",
				"https://www.acme.com/",
				"https://www.acme.com",
			},
		},
		{
			name: "query preserved",
			in:   "https://acme.com/search?q=x",
			want: []string{
				"https://acme.com/search?q=x",
				"https://acme.com/search/?q=x",
				"https://www.acme.com/search?q=x",
				"https://www.acme.com/search/?q=x",
			},
		},
		{
			name: "unparseable",
			in:   "://nope",
			want: []string{"://nope"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, URLVariants(tt.in))
		})
	}
}

func TestURLVariants_Unique(t *testing.T) {
	t.Parallel()

	got := URLVariants("https://acme.com/a/")
	seen := map[string]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate %s", v)
		seen[v] = true
	}
}
