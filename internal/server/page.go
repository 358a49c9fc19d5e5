package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/menta2k/rx-reader/pkg/types"
)

type pageData struct {
	Formats  []string
	Filename string
	Error    string
	Result   *types.Result
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"join":   strings.Join,
	"trim":   strings.TrimSpace,
	"accept": acceptAttr,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Prescription Reader</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 2em auto; padding: 0 1em; }
pre { background: #f6f6f6; padding: 1em; white-space: pre-wrap; }
.error { color: #a00; }
</style>
</head>
<body>
<h1>Prescription Reader</h1>
<p>Upload a photo of a handwritten prescription ({{join .Formats ", "}}).</p>
<form action="/read" method="post" enctype="multipart/form-data">
  <input type="file" name="prescription" accept="{{accept .Formats}}" required>
  <button type="submit">Read prescription</button>
</form>
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
{{with .Result}}
<h2>Model Interpretations</h2>
{{range .Interpretations}}
<h3>Interpretation {{.Pass}} (temperature: {{printf "%.1f" .Temperature}})</h3>
<pre>{{trim .Text}}</pre>
{{else}}<p>No interpretations were produced.</p>{{end}}
{{if .FailedPasses}}<p>{{.FailedPasses}} interpretation pass(es) failed and were dropped.</p>{{end}}
{{if .Groups}}
<h2>Medicine Name Groups</h2>
<ul>{{range .Groups}}<li>{{.Summary}}</li>{{end}}</ul>
{{end}}
{{if .Verifications}}
<h2>Verification Results</h2>
{{range .Verifications}}
<h3>Medicine Position {{.Position}}{{if .Key}}: {{.Key}}{{end}}</h3>
<pre>{{trim .Text}}</pre>
{{end}}
{{end}}
{{if .FinalReport}}
<h2>Final Prescription</h2>
<pre>{{trim .FinalReport}}</pre>
{{end}}
<p>Completed in {{.Timings.Total}}.</p>
{{end}}
</body>
</html>
`))

// acceptAttr renders the file input accept list, e.g. ".jpg,.jpeg"
func acceptAttr(formats []string) string {
	exts := make([]string, len(formats))
	for i, f := range formats {
		exts[i] = "." + strings.TrimPrefix(f, ".")
	}
	return strings.Join(exts, ",")
}

func (s *Server) renderPage(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("failed to render page", "error", err)
	}
}
