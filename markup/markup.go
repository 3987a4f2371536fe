// CLAUDE:SUMMARY HTML normalization: bluemonday sanitization, markdown conversion with plain-text degradation, reading metrics.
// Package markup normalizes HTML content for document storage.
//
// Sanitization strips scripting and unsafe markup while preserving cid:
// references so inline attachments can be rewritten after upload.
// Markdown conversion never fails — malformed input degrades to stripped
// plain text rather than aborting the pipeline.
package markup

import (
	"math"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// wordsPerMinute is the reading-speed baseline for reading-time estimates.
const wordsPerMinute = 238

// Renderer sanitizes and converts HTML. Safe for concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// New creates a Renderer.
func New() *Renderer {
	policy := bluemonday.UGCPolicy()
	// cid: references must survive sanitization — they are rewritten to
	// proxy paths only after attachment upload.
	policy.AllowURLSchemes("cid")
	policy.AllowAttrs("width", "height").OnElements("img")

	return &Renderer{
		policy: policy,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Sanitize strips scripting and unsafe markup. Idempotent: sanitizing
// already-sanitized HTML yields the same output.
func (r *Renderer) Sanitize(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}
	return r.policy.Sanitize(htmlStr)
}

// ToMarkdown converts HTML to markdown. Never fails: if conversion errors
// or produces empty output, returns the stripped plain text instead.
func (r *Renderer) ToMarkdown(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}
	result, err := r.conv.ConvertString(htmlStr)
	if err != nil || strings.TrimSpace(result) == "" {
		return StripTags(htmlStr)
	}
	return strings.TrimSpace(result)
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime estimates reading time in whole minutes for a word count.
// Non-empty content always reads as at least one minute.
func ReadingTime(words int) int {
	if words <= 0 {
		return 0
	}
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}
