package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteqa/internal/model"
)

func TestSelect_PresetStrategy(t *testing.T) {
	t.Parallel()

	s := New(nil, WithStrategy(StrategyPreset))
	got := s.Select(context.Background(), "How do you help with CX?", base, model.PresetCX)
	assert.Equal(t, []string{
		"https://acme.com/solutions/customer-experience/",
		"https://acme.com/customer-experience/",
		"https://acme.com/solutions/",
	}, got)
}

func TestSelect_SitemapStrategyScores(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		base + "/sitemap.xml": urlset(
			"https://acme.com/",
			"https://acme.com/careers",
			"https://acme.com/pricing/",
			"https://acme.com/blog/pricing-update/",
			"https://acme.com/contact",
		),
	})
	s := New(NewDiscoverer(f, nil, 0, 0), WithStrategy(StrategySitemap), WithMaxURLs(2))

	got := s.Select(context.Background(), "What is your pricing?", base, model.PresetCore)
	assert.Equal(t, []string{"https://acme.com/blog/pricing-update/", "https://acme.com/pricing/"}, got)
}

func TestSelect_HybridPresetFirstThenScored(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(map[string]string{
		base + "/sitemap.xml": urlset(
			"https://acme.com/about/",
			"https://acme.com/pricing/",
			"https://acme.com/team",
		),
	})
	s := New(NewDiscoverer(f, nil, 0, 0))
	assert.Equal(t, StrategyHybrid, s.Strategy())

	got := s.Select(context.Background(), "What is your pricing?", base, model.PresetCore)
	assert.Equal(t, []string{
		"https://acme.com/",
		"https://acme.com/about/",
		"https://acme.com/solutions/",
		"https://acme.com/pricing/",
		"https://acme.com/team",
	}, got)
}

func TestSelect_FallbackWhenEmpty(t *testing.T) {
	t.Parallel()

	s := New(NewDiscoverer(newFakeFetcher(nil), nil, 0, 0), WithStrategy(StrategySitemap))
	got := s.Select(context.Background(), "anything", base, model.PresetCore)
	assert.Equal(t, []string{
		"https://acme.com/",
		"https://acme.com/about/",
		"https://acme.com/contact/",
		"https://acme.com/services/",
	}, got)
}

func TestSelect_NilDiscovererSitemapStrategy(t *testing.T) {
	t.Parallel()

	got := New(nil, WithStrategy(StrategySitemap)).Select(context.Background(), "q", base, model.PresetCore)
	assert.NotEmpty(t, got)
}

func TestSelect_CustomPresets(t *testing.T) {
	t.Parallel()

	paths := DefaultPresetPaths()
	paths[model.PresetEX] = []string{"/people/", "/people", "/culture/"}
	s := New(nil, WithStrategy(StrategyPreset), WithPresetPaths(paths))

	got := s.Select(context.Background(), "ex?", base, model.PresetEX)
	assert.Equal(t, []string{"https://acme.com/people/", "https://acme.com/culture/"}, got)
}

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Strategy{
		"":        StrategyHybrid,
		"HYBRID":  StrategyHybrid,
		"preset":  StrategyPreset,
		"sitemap": StrategySitemap,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("random")
	assert.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"https://acme.com/", "https://acme.com", false},
		{"acme.com", "https://acme.com", false},
		{"  HTTP://Acme.COM//  ", "http://acme.com", false},
		{"https://acme.com/en/?utm=1#top", "https://acme.com/en", false},
		{"ftp://acme.com", "", true},
		{"", "", true},
		{"https://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := NormalizeBaseURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
