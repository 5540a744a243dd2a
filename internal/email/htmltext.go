package email

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags start a new output line when encountered.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "table": true, "ul": true, "ol": true,
}

// HTMLToText flattens an HTML document to readable plain text: tags
// stripped, block elements separated by newlines, script and style
// content dropped.
func HTMLToText(src string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(src))

	var sb strings.Builder
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if tag == "script" || tag == "style" {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if blockTags[tag] {
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			tag := string(name)
			if (tag == "script" || tag == "style") && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.TrimSpace(string(tokenizer.Text()))
			if text == "" {
				continue
			}
			if sb.Len() > 0 {
				last := sb.String()[sb.Len()-1]
				if last != '\n' && last != ' ' {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(text)
		}
	}

	// Collapse runs of blank lines left by nested block elements.
	lines := strings.Split(sb.String(), "\n")
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
