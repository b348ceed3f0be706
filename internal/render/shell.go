package render

import "strings"

// baseCSS gives every card the same visual baseline no matter what
// markup the model emitted.
const baseCSS = `
body {
  margin: 0;
  padding: 20px;
  font-family: system-ui, -apple-system, sans-serif;
  background: linear-gradient(135deg, #f5f7fa 0%, #e8ecf5 100%);
  color: #333;
}
h1, h2, h3 {
  color: #6d28d9;
}
p {
  line-height: 1.6;
}
ul, ol {
  padding-left: 20px;
}`

// BuildDocument wraps an HTML fragment in a full document shell with the
// base styling plus caller-supplied CSS overrides appended last so they win.
func BuildDocument(fragment, extraCSS string) string {
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0">`)
	b.WriteString("<style>")
	b.WriteString(baseCSS)
	if extraCSS != "" {
		b.WriteString("\n")
		b.WriteString(extraCSS)
	}
	b.WriteString("</style></head><body>")
	b.WriteString(fragment)
	b.WriteString("</body></html>")
	return b.String()
}
