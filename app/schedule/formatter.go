package schedule

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lysyi3m/social-comb/app/config"
)

const summaryBudget = 280

// Formatter renders platform post bodies from the platform's template.
// Supported placeholders: {title}, {summary}, {hashtags}, {url},
// {attribution}. The rendered body is truncated to the platform's maximum
// length at a sentence boundary when one falls late enough.
type Formatter struct {
	format config.PlatformFormat
}

func NewFormatter(format config.PlatformFormat) *Formatter {
	return &Formatter{format: format}
}

func (f *Formatter) Render(title, text, url string, categories []string, attribution string) string {
	replacer := strings.NewReplacer(
		"{title}", strings.TrimSpace(title),
		"{summary}", summarize(text, summaryBudget),
		"{hashtags}", f.hashtags(categories),
		"{url}", url,
		"{attribution}", attribution,
	)

	body := replacer.Replace(f.format.Template)
	body = collapseBlankLines(body)

	if f.format.MaxLength > 0 && len(body) > f.format.MaxLength {
		body = truncate(body, f.format.MaxLength)
	}

	return strings.TrimSpace(body)
}

func (f *Formatter) hashtags(categories []string) string {
	limit := f.format.HashtagLimit
	if limit <= 0 || len(categories) == 0 {
		return ""
	}

	var tags []string
	seen := make(map[string]bool)
	for _, category := range categories {
		tag := hashtag(category)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == limit {
			break
		}
	}
	return strings.Join(tags, " ")
}

// hashtag turns a category label into a CamelCase hashtag, dropping
// anything that is not a letter or digit.
func hashtag(category string) string {
	var b strings.Builder
	for _, word := range strings.Fields(category) {
		first := true
		for _, r := range word {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				continue
			}
			if first {
				b.WriteRune(unicode.ToUpper(r))
				first = false
			} else {
				b.WriteRune(r)
			}
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}

// summarize returns the leading whole sentences of text that fit the
// budget, falling back to a word-boundary cut for a single long sentence.
func summarize(text string, budget int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= budget {
		return text
	}

	head := cutAtRune(text, budget)
	if cut := lastSentenceEnd(head); cut > 0 {
		return strings.TrimSpace(text[:cut])
	}

	if cut := strings.LastIndex(head, " "); cut > 0 {
		return strings.TrimSpace(text[:cut]) + "..."
	}
	return head + "..."
}

// truncate shortens body to at most max bytes, preferring a sentence
// boundary when one falls in the last third.
func truncate(body string, max int) string {
	const ellipsis = "..."
	if max <= len(ellipsis) {
		return cutAtRune(body, max)
	}

	head := cutAtRune(body, max-len(ellipsis))
	if cut := lastSentenceEnd(head); cut >= (max*7)/10 {
		return strings.TrimSpace(body[:cut])
	}

	if cut := strings.LastIndex(head, " "); cut > 0 {
		head = head[:cut]
	}
	return strings.TrimSpace(head) + ellipsis
}

// cutAtRune cuts s to at most n bytes, backing up so a multi-byte rune is
// never split.
func cutAtRune(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func lastSentenceEnd(s string) int {
	end := -1
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			end = i + 1
		}
	}
	return end
}

func collapseBlankLines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}
