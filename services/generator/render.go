package generator

import (
	"bytes"
	"embed"
	"text/template"

	"web2desk/pkg/target"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Templates are static and embedded, so a parse failure is a programming
// error caught at init.
var readmeTemplates = template.Must(template.New("generator").ParseFS(templatesFS, "templates/*.tmpl"))

type readmeData struct {
	AppName     string
	ProjectName string
	SourceURL   string
	OS          string
	Webview     bool
	Windows     bool
	MacOS       bool
	Linux       bool
	Android     bool
}

func renderReadme(name string, data readmeData) (string, error) {
	var buf bytes.Buffer
	if err := readmeTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func newReadmeData(p Params, projectName string) readmeData {
	return readmeData{
		AppName:     p.AppName,
		ProjectName: projectName,
		SourceURL:   p.SourceURL,
		OS:          string(p.OS),
		Webview:     p.Mode == target.ModeWebview,
		Windows:     p.OS == target.Windows,
		MacOS:       p.OS == target.MacOS,
		Linux:       p.OS == target.Linux,
		Android:     p.OS == target.Android,
	}
}
