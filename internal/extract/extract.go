// Package extract parses raw HTML into contact signals: emails, inferred
// owner names and categorized social links. It performs no I/O.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/sells-group/cafescrape/internal/model"
)

var emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

// Options tunes the owner-name heuristic.
type Options struct {
	// MinNameWords and MaxNameWords bound the accepted caption length.
	MinNameWords int
	MaxNameWords int
	// NameTrimChars are stripped from both ends of a candidate caption.
	NameTrimChars string
}

// DefaultOptions returns the stock heuristic settings.
func DefaultOptions() Options {
	return Options{
		MinNameWords:  1,
		MaxNameWords:  4,
		NameTrimChars: " -:\n\t",
	}
}

// Extractor parses contact pages. It holds no mutable state and is safe for
// concurrent use.
type Extractor struct {
	opts Options
}

// New creates an Extractor. Zero-valued options fall back to the defaults.
func New(opts Options) *Extractor {
	def := DefaultOptions()
	if opts.MinNameWords <= 0 {
		opts.MinNameWords = def.MinNameWords
	}
	if opts.MaxNameWords <= 0 {
		opts.MaxNameWords = def.MaxNameWords
	}
	if opts.NameTrimChars == "" {
		opts.NameTrimChars = def.NameTrimChars
	}
	return &Extractor{opts: opts}
}

// ParseContactPage parses html with the default options.
func ParseContactPage(htmlText string) (*model.PageExtraction, error) {
	return New(DefaultOptions()).Parse(htmlText)
}

// Parse extracts emails, owner names and social links from one page.
// Malformed markup is tolerated; an error is returned only when the
// document cannot be read at all.
func (e *Extractor) Parse(htmlText string) (*model.PageExtraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}

	texts := make([]string, 0, len(doc.Nodes))
	for _, root := range doc.Nodes {
		texts = append(texts, textOf(root))
	}

	ex := model.NewPageExtraction()
	ex.Emails = ExtractEmails(strings.Join(texts, " "))
	for _, email := range ex.Emails {
		ex.EmailToName[email] = nil
	}

	for _, root := range doc.Nodes {
		e.inferNames(root, ex.EmailToName)
	}
	ex.SocialLinks = extractSocialLinks(doc)

	return ex, nil
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ExtractEmails returns the distinct normalized addresses found in text,
// sorted lexically.
func ExtractEmails(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range emailRe.FindAllString(text, -1) {
		seen[NormalizeEmail(m)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for email := range seen {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// inferNames walks every text node containing an address and takes the
// rendered text that precedes it inside its parent element as a caption.
// The first accepted caption for an address wins.
func (e *Extractor) inferNames(root *html.Node, names map[string]*string) {
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			matches := emailRe.FindAllString(n.Data, -1)
			if len(matches) == 0 || n.Parent == nil {
				return
			}
			name, ok := e.acceptName(textBefore(n.Parent, n))
			if !ok {
				return
			}
			for _, m := range matches {
				email := NormalizeEmail(m)
				if cur, exists := names[email]; exists && cur == nil {
					v := name
					names[email] = &v
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
}

func (e *Extractor) acceptName(caption string) (string, bool) {
	caption = strings.Trim(caption, e.opts.NameTrimChars)
	words := strings.Fields(caption)
	if len(words) < e.opts.MinNameWords || len(words) > e.opts.MaxNameWords {
		return "", false
	}
	return strings.Join(words, " "), true
}

// textOf concatenates all text nodes under n separated by single spaces,
// so adjacent elements never glue words into one token.
func textOf(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

// textBefore returns the text of parent's text nodes that precede target
// in document order.
func textBefore(parent, target *html.Node) string {
	var parts []string
	done := false
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if done {
			return
		}
		if n == target {
			done = true
			return
		}
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(parent)
	return strings.Join(parts, " ")
}
