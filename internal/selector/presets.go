package selector

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/siteqa/internal/model"
)

// PresetPaths maps each preset to path suffixes joined to the site base URL.
type PresetPaths map[model.Preset][]string

// DefaultPresetPaths returns the built-in preset path table.
func DefaultPresetPaths() PresetPaths {
	return PresetPaths{
		model.PresetCore: {"/", "/about/", "/solutions/"},
		model.PresetCX:   {"/solutions/customer-experience/", "/customer-experience/", "/solutions/"},
		model.PresetEX:   {"/solutions/employee-experience/", "/employee-experience/", "/solutions/"},
	}
}

// LoadPresetPaths reads a YAML file of the form
//
//	core: ["/", "/about/"]
//	cx: ["/cx/"]
//
// and overlays it on the defaults. Unknown preset keys are rejected.
func LoadPresetPaths(path string) (PresetPaths, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "selector: read presets file")
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "selector: parse presets file")
	}

	out := DefaultPresetPaths()
	for name, paths := range raw {
		p, err := model.ParsePreset(name)
		if err != nil || p == "" {
			return nil, eris.Errorf("selector: presets file: unknown preset %q", name)
		}
		if len(paths) == 0 {
			continue
		}
		out[p] = paths
	}
	return out, nil
}

var (
	cxRe = regexp.MustCompile(`(?i)\b(?:customer\s+experience|cx)\b`)
	exRe = regexp.MustCompile(`(?i)\b(?:employee\s+experience|ex)\b`)
)

// DetectPreset classifies a question by whole-word keyword match. "cx" and
// "ex" only count as standalone words, so "excel" stays core.
func DetectPreset(question string) model.Preset {
	switch {
	case cxRe.MatchString(question):
		return model.PresetCX
	case exRe.MatchString(question):
		return model.PresetEX
	default:
		return model.PresetCore
	}
}

// joinPath appends a path suffix to a normalized base URL (no trailing slash).
func joinPath(base, suffix string) string {
	if suffix == "" || suffix == "/" {
		return base + "/"
	}
	if !strings.HasPrefix(suffix, "/") {
		suffix = "/" + suffix
	}
	return base + suffix
}
