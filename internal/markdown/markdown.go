// Package markdown converts notes to and from Markdown files with YAML
// frontmatter, for export and for importing notes written by hand.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/voxnote/internal/models"
)

// Section headings. Parse recognizes them case-insensitively.
const (
	headingSummary       = "Summary"
	headingActionItems   = "Action Items"
	headingKeyPoints     = "Key Points"
	headingMainTopics    = "Main Topics"
	headingQuestions     = "Questions"
	headingTranscription = "Transcription"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

type frontmatter struct {
	ID               string    `yaml:"id,omitempty"`
	Title            string    `yaml:"title,omitempty"`
	Category         string    `yaml:"category,omitempty"`
	Tags             []string  `yaml:"tags,omitempty"`
	Favorite         bool      `yaml:"favorite,omitempty"`
	Source           string    `yaml:"source,omitempty"`
	AudioURI         string    `yaml:"audio_uri,omitempty"`
	FileName         string    `yaml:"file_name,omitempty"`
	CreatedAt        time.Time `yaml:"created_at,omitempty"`
	UpdatedAt        time.Time `yaml:"updated_at,omitempty"`
	ProcessingStatus string    `yaml:"processing_status,omitempty"`
}

// Render writes n as Markdown.
func Render(n models.Note) ([]byte, error) {
	fm := frontmatter{
		ID:               n.ID,
		Title:            n.Title,
		Category:         n.Category,
		Tags:             n.Tags,
		Favorite:         n.IsFavorite,
		Source:           string(n.Source),
		AudioURI:         n.AudioURI,
		FileName:         n.FileName,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
		ProcessingStatus: string(n.ProcessingStatus),
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("markdown: encode frontmatter: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n")
	if n.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", n.Title)
	}
	if c := strings.TrimSpace(n.Content); c != "" {
		b.WriteString(escapeHeadings(c))
		b.WriteString("\n")
	}
	if s := strings.TrimSpace(n.Summary); s != "" {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", headingSummary, escapeHeadings(s))
	}
	writeList(&b, headingActionItems, "- [ ] ", n.ActionItems)
	writeList(&b, headingKeyPoints, "- ", n.KeyPoints)
	writeList(&b, headingMainTopics, "- ", n.MainTopics)
	writeList(&b, headingQuestions, "- ", n.Questions)
	if tr := strings.TrimSpace(n.Transcription); tr != "" && tr != strings.TrimSpace(n.Content) {
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", headingTranscription, escapeHeadings(tr))
	}
	return b.Bytes(), nil
}

func writeList(b *bytes.Buffer, heading, bullet string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", heading)
	for _, it := range items {
		lines := strings.Split(escapeHeadings(it), "\n")
		b.WriteString(bullet)
		b.WriteString(lines[0])
		b.WriteString("\n")
		for _, l := range lines[1:] {
			b.WriteString(listIndent)
			b.WriteString(l)
			b.WriteString("\n")
		}
	}
}

// listIndent marks a line as the continuation of the list item above it.
const listIndent = "  "

// escapeHeadings backslash-escapes lines of free text that would otherwise
// read as headings, so Parse does not split them off as sections.
func escapeHeadings(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		body := strings.TrimLeft(l, " \t")
		if strings.HasPrefix(body, "#") {
			lines[i] = l[:len(l)-len(body)] + `\` + body
		}
	}
	return strings.Join(lines, "\n")
}

// unescapeHeadings reverses escapeHeadings.
func unescapeHeadings(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		body := strings.TrimLeft(l, " \t")
		if strings.HasPrefix(body, `\#`) {
			lines[i] = l[:len(l)-len(body)] + body[1:]
		}
	}
	return strings.Join(lines, "\n")
}

// Parse reads a Markdown file into a note. Frontmatter is optional and
// invalid YAML is treated as body text. The title comes from frontmatter,
// then the first H1. Inline #tags are merged after frontmatter tags.
func Parse(data []byte) (models.Note, error) {
	fm, body := splitFrontmatter(data)

	n := models.Note{
		ID:               fm.ID,
		Title:            fm.Title,
		Category:         fm.Category,
		IsFavorite:       fm.Favorite,
		Source:           models.Source(fm.Source),
		AudioURI:         fm.AudioURI,
		FileName:         fm.FileName,
		CreatedAt:        fm.CreatedAt,
		UpdatedAt:        fm.UpdatedAt,
		ProcessingStatus: models.ProcessingStatus(fm.ProcessingStatus),
	}

	sections := splitSections(body)
	lead := sections[""]
	if h1, rest, ok := takeH1(lead); ok {
		if n.Title == "" {
			n.Title = h1
		}
		lead = rest
	}
	n.Content = unescapeHeadings(strings.TrimSpace(lead))
	n.Summary = unescapeHeadings(strings.TrimSpace(sections[strings.ToLower(headingSummary)]))
	n.Transcription = unescapeHeadings(strings.TrimSpace(sections[strings.ToLower(headingTranscription)]))
	n.ActionItems = listItems(sections[strings.ToLower(headingActionItems)])
	n.KeyPoints = listItems(sections[strings.ToLower(headingKeyPoints)])
	n.MainTopics = listItems(sections[strings.ToLower(headingMainTopics)])
	n.Questions = listItems(sections[strings.ToLower(headingQuestions)])
	n.Tags = mergeTags(fm.Tags, n.Content)
	n.Normalize()

	if n.Title == "" && n.Content == "" {
		return models.Note{}, fmt.Errorf("markdown: note has neither title nor content")
	}
	return n, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without valid frontmatter the entire content is body.
func splitFrontmatter(data []byte) (frontmatter, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return frontmatter{}, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return frontmatter{}, string(data)
	}
	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return frontmatter{}, string(data)
	}
	return fm, body
}

// splitSections groups body lines under their "## " heading, keyed by the
// lowered heading text. Text before the first heading is keyed "".
// Headings must start at column 0.
func splitSections(body string) map[string]string {
	out := make(map[string]string)
	key := ""
	var cur []string
	flush := func() {
		out[key] = strings.Join(cur, "\n")
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		if h, ok := strings.CutPrefix(line, "## "); ok {
			flush()
			key = strings.ToLower(strings.TrimSpace(h))
			cur = nil
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

func takeH1(text string) (title, rest string, ok bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if h, found := strings.CutPrefix(trimmed, "# "); found {
			return strings.TrimSpace(h), strings.Join(lines[i+1:], "\n"), true
		}
		return "", text, false
	}
	return "", text, false
}

var bullets = []string{"- [ ] ", "- [x] ", "- [X] ", "- ", "* "}

// listItems reads one item per bullet line. Indented lines that follow a
// bullet continue its item, blank lines between them included.
func listItems(section string) []string {
	var out []string
	var cur []string
	blanks := 0
	flush := func() {
		if item := unescapeHeadings(strings.TrimSpace(strings.Join(cur, "\n"))); item != "" {
			out = append(out, item)
		}
		cur, blanks = nil, 0
	}
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimRight(line, "\r")
		if item, ok := cutBullet(line); ok {
			flush()
			cur = []string{item}
			continue
		}
		if cur == nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			blanks++
			continue
		}
		if rest, ok := strings.CutPrefix(line, listIndent); ok {
			for ; blanks > 0; blanks-- {
				cur = append(cur, "")
			}
			cur = append(cur, rest)
			continue
		}
		flush()
	}
	flush()
	return out
}

func cutBullet(line string) (string, bool) {
	for _, p := range bullets {
		if item, ok := strings.CutPrefix(line, p); ok {
			return item, true
		}
	}
	return "", false
}

// mergeTags keeps frontmatter tags first and appends unseen inline #tags.
func mergeTags(fmTags []string, body string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(t string) {
		t = strings.TrimSpace(t)
		if t == "" {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	for _, t := range fmTags {
		add(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// FileName returns a stable export file name for n.
func FileName(n models.Note) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(n.Title), "-"), "-")
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	id := n.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	if slug == "" {
		return id + ".md"
	}
	return slug + "-" + id + ".md"
}
