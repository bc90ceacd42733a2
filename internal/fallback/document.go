package fallback

import (
	"bytes"
	"fmt"
	"html/template"
)

var documentTmpl = template.Must(template.New("fragment").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<base href="{{.Base}}">
<title>Element {{.Position}}</title>
<style>
html, body { margin: 0; padding: 0; background: #fff; }
body {
  -webkit-font-smoothing: antialiased;
  -moz-osx-font-smoothing: grayscale;
  text-rendering: optimizeLegibility;
}
.shotpdf-fragment { padding: 10px; }
</style>
</head>
<body>
<div class="shotpdf-fragment{{with .Class}} {{.}}{{end}}"{{with .ID}} id="{{.}}"{{end}}>{{.Inner}}</div>
</body>
</html>
`))

// Document wraps a fragment's inner markup in a minimal standalone page. The
// wrapper keeps the element's class and id so page styles keyed on them still
// apply, and base resolves relative URLs against the fetched page.
func Document(frag Fragment, base string, position int) ([]byte, error) {
	var buf bytes.Buffer
	err := documentTmpl.Execute(&buf, struct {
		Base     string
		Position int
		Class    string
		ID       string
		Inner    template.HTML
	}{
		Base:     base,
		Position: position,
		Class:    frag.Class,
		ID:       frag.ID,
		Inner:    template.HTML(frag.Inner),
	})
	if err != nil {
		return nil, fmt.Errorf("building document: %w", err)
	}
	return buf.Bytes(), nil
}
