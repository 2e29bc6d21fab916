// Package prompt assembles the grounded generation prompt from a question
// and retrieved page excerpts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/sells-group/siteqa/internal/model"
	"github.com/sells-group/siteqa/internal/scrape"
)

// Defaults for Options.
const (
	DefaultMaxWords       = 100
	DefaultBullets        = 5
	DefaultExcerptCap     = 10000
	DefaultFallbackPhrase = "Not stated on the provided pages."
)

// Options shapes the output constraints and bounds the excerpt text.
type Options struct {
	MaxWords       int
	Bullets        int // required bullet count for cx/ex presets
	ExcerptCap     int // characters of concatenated excerpt text
	FallbackPhrase string
}

// DefaultOptions returns the standard prompt options.
func DefaultOptions() Options {
	return Options{
		MaxWords:       DefaultMaxWords,
		Bullets:        DefaultBullets,
		ExcerptCap:     DefaultExcerptCap,
		FallbackPhrase: DefaultFallbackPhrase,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxWords <= 0 {
		o.MaxWords = d.MaxWords
	}
	if o.Bullets <= 0 {
		o.Bullets = d.Bullets
	}
	if o.ExcerptCap <= 0 {
		o.ExcerptCap = d.ExcerptCap
	}
	if strings.TrimSpace(o.FallbackPhrase) == "" {
		o.FallbackPhrase = d.FallbackPhrase
	}
	return o
}

var restatements = map[model.Preset]string{
	model.PresetCX: "How does this organization approach customer experience (CX), and what does it offer in that area?",
	model.PresetEX: "How does this organization approach employee experience (EX), and what does it offer in that area?",
}

// Build returns the prompt. Sections appear in a fixed order: grounding
// instruction, output constraints, question, then excerpts labeled
// "[n] URL". Excerpt text is truncated after concatenation.
func Build(question string, preset model.Preset, pages []model.RetrievedPage, opts Options) string {
	opts = opts.withDefaults()

	var b strings.Builder
	b.WriteString("You answer questions about an organization using only the website excerpts provided below. ")
	b.WriteString("Answer only using the excerpts provided; do not use outside knowledge. ")
	b.WriteString("Cite the excerpts you rely on with their bracketed numbers, e.g. [1].\n\n")

	b.WriteString("Output rules:\n")
	fmt.Fprintf(&b, "- Use at most %d words.\n", opts.MaxWords)
	if preset == model.PresetCX || preset == model.PresetEX {
		fmt.Fprintf(&b, "- Respond with exactly %d bullet points, each starting with \"- \".\n", opts.Bullets)
	}
	fmt.Fprintf(&b, "- If the excerpts do not contain the answer, reply exactly: %s\n\n", opts.FallbackPhrase)

	b.WriteString("Question: ")
	b.WriteString(Restate(question, preset))
	b.WriteString("\n\nExcerpts:\n")
	b.WriteString(Excerpts(pages, opts.ExcerptCap))
	return b.String()
}

// Restate returns the question as posed to the model. Non-core presets get
// a normalized restatement with the original question appended.
func Restate(question string, preset model.Preset) string {
	q := strings.TrimSpace(question)
	r, ok := restatements[preset]
	if !ok {
		return q
	}
	return fmt.Sprintf("%s (Asked as: %q)", r, q)
}

// Excerpts concatenates labeled page excerpts and truncates the result to
// maxChars characters.
func Excerpts(pages []model.RetrievedPage, maxChars int) string {
	var b strings.Builder
	for i, p := range pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p.URL)
		if p.Title != "" {
			fmt.Fprintf(&b, "Title: %s\n", p.Title)
		}
		b.WriteString(p.Text)
	}
	return scrape.Truncate(b.String(), maxChars)
}
