package httpapp

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

// assetFS holds the browser widget and its proof-of-work worker.
//
//go:embed assets
var assetFS embed.FS

func assets() (fs.FS, error) {
	return fs.Sub(assetFS, "assets")
}

type Templates struct {
	Comments *template.Template
}

func loadTemplates() (*Templates, error) {
	funcs := template.FuncMap{
		"plural": func(n int, one, many string) string {
			if n == 1 {
				return one
			}
			return many
		},
	}

	comments, err := template.New("comments.html").Funcs(funcs).ParseFS(templateFS, "templates/comments.html")
	if err != nil {
		return nil, err
	}
	return &Templates{Comments: comments}, nil
}
