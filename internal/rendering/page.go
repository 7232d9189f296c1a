// Package rendering renders the resume card page used for PDF export.
package rendering

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"regexp"

	"github.com/jonathan/portfolio-core/internal/portfolio"
)

//go:embed templates/resume.html.tmpl
var templateFS embed.FS

const defaultTemplate = "templates/resume.html.tmpl"

// DefaultCategoryColor is used for skill categories without a valid color.
const DefaultCategoryColor = "#667eea"

// Placeholders shown when the personal record is incomplete.
const (
	PlaceholderName     = "Your Name"
	PlaceholderTitle    = "Professional Title"
	PlaceholderEmail    = "email@example.com"
	PlaceholderPhone    = "+13269006983"
	PlaceholderLocation = "City, Country"
)

// Stages at which a page render can fail.
const (
	StageRead    = "read"
	StageParse   = "parse"
	StageData    = "data"
	StageExecute = "execute"
)

// PageError reports a page render that failed at Stage. Template is the
// template path, empty for the built-in page.
type PageError struct {
	Template string
	Stage    string
	Cause    error
}

func (e *PageError) Error() string {
	name := e.Template
	if name == "" {
		name = "built-in"
	}
	return fmt.Sprintf("render page (template %s, %s): %v", name, e.Stage, e.Cause)
}

func (e *PageError) Unwrap() error {
	return e.Cause
}

// PageData is what the page template is executed with.
type PageData struct {
	Name         string
	Title        string
	Email        string
	Phone        string
	Location     string
	Sections     []portfolio.ResumeSection
	ShowDownload bool
}

// Options controls page rendering.
type Options struct {
	// TemplatePath overrides the built-in template.
	TemplatePath string
	// ShowDownload includes the download button. Capture hides it either way.
	ShowDownload bool
}

// RenderHTML renders the resume card page for doc.
func RenderHTML(doc portfolio.Document, opts Options) (string, error) {
	tmpl, err := parseTemplate(opts.TemplatePath)
	if err != nil {
		return "", err
	}

	data, err := buildPageData(doc)
	if err != nil {
		return "", &PageError{Template: opts.TemplatePath, Stage: StageData, Cause: err}
	}
	data.ShowDownload = opts.ShowDownload

	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", &PageError{Template: opts.TemplatePath, Stage: StageExecute, Cause: err}
	}
	return out.String(), nil
}

// parseTemplate loads templatePath, or the built-in page when empty.
func parseTemplate(templatePath string) (*template.Template, error) {
	var (
		content []byte
		err     error
	)
	if templatePath == "" {
		content, err = templateFS.ReadFile(defaultTemplate)
	} else {
		content, err = os.ReadFile(templatePath)
	}
	if err != nil {
		return nil, &PageError{Template: templatePath, Stage: StageRead, Cause: err}
	}

	tmpl, err := template.New("resume").Funcs(template.FuncMap{
		"categoryColor": categoryColor,
		"skillTitle":    skillTitle,
	}).Parse(string(content))
	if err != nil {
		return nil, &PageError{Template: templatePath, Stage: StageParse, Cause: err}
	}
	return tmpl, nil
}

func buildPageData(doc portfolio.Document) (*PageData, error) {
	personal := doc.Record(portfolio.SectionPersonal)
	resume, err := doc.Resume()
	if err != nil {
		return nil, err
	}

	return &PageData{
		Name:     stringOr(personal, "name", PlaceholderName),
		Title:    stringOr(personal, "title", PlaceholderTitle),
		Email:    stringOr(personal, "email", PlaceholderEmail),
		Phone:    stringOr(personal, "phone", PlaceholderPhone),
		Location: stringOr(personal, "location", PlaceholderLocation),
		Sections: resume.Sections,
	}, nil
}

func stringOr(record map[string]any, key, fallback string) string {
	if s, ok := record[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// categoryColor only lets plain hex colors into the style attribute.
func categoryColor(c string) template.CSS {
	if !hexColor.MatchString(c) {
		c = DefaultCategoryColor
	}
	return template.CSS(c)
}

func skillTitle(s portfolio.Skill) string {
	if s.Description == "" {
		return s.Name
	}
	return s.Name + ": " + s.Description
}
