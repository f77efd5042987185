package fetch

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxTextLength caps the extracted text, counted in characters.
const MaxTextLength = 10000

var (
	// Boilerplate blocks removed before tags are stripped. Non-greedy and
	// spanning lines, matched case-insensitively.
	boilerplatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script.*?</script>`),
		regexp.MustCompile(`(?is)<style.*?</style>`),
		regexp.MustCompile(`(?is)<nav.*?</nav>`),
		regexp.MustCompile(`(?is)<footer.*?</footer>`),
		regexp.MustCompile(`(?is)<header.*?</header>`),
	}

	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
	spacesPattern     = regexp.MustCompile(`[ \t]+`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)

	// Angle brackets left after decoding are dropped so the output never
	// contains markup characters.
	angleReplacer = strings.NewReplacer("<", "", ">", "")
)

// ExtractText converts raw HTML into plain text. It is a best-effort heuristic,
// not an HTML parser. An empty result means nothing usable was found.
func ExtractText(html string) string {
	text := html
	for _, p := range boilerplatePatterns {
		text = p.ReplaceAllString(text, "")
	}

	text = tagPattern.ReplaceAllString(text, "\n")
	text = decodeEntities(text)

	text = blankLinesPattern.ReplaceAllString(text, "\n\n")
	text = spacesPattern.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	text = strings.TrimSpace(strings.Join(kept, "\n"))

	return truncateRunes(text, MaxTextLength)
}

// decodeEntities replaces the supported entity set and drops angle brackets
// until neither changes the text, so double-encoded input such as
// "&amp;amp;" is fully decoded. Every pass shortens the string.
func decodeEntities(s string) string {
	for {
		decoded := angleReplacer.Replace(entityReplacer.Replace(s))
		if decoded == s {
			return s
		}
		s = decoded
	}
}

func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}

// ExtractTitle tries to extract a page title from HTML content.
func ExtractTitle(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}

	// Fallback to OpenGraph title
	if ogTitle, _ := doc.Find("meta[property='og:title']").Attr("content"); strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}

	return strings.TrimSpace(doc.Find("h1").First().Text())
}
