package templates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"path"
	"strings"
	textTemplate "text/template"

	"github.com/yuin/goldmark"
	"gopkg.in/yaml.v3"
)

// ErrInvalidFrontMatter is returned for markdown templates whose YAML header cannot be parsed.
var ErrInvalidFrontMatter = errors.New("invalid front matter")

// FSResolver loads templates from a directory tree laid out as
// <folder>/<file>.<ext>. Recognised extensions:
//
//	.html           html/template body
//	.txt, .text     text/template plain-text body
//	.subject        text/template subject line
//	.md             markdown body with optional YAML front matter (Subject key)
//
// Dedicated .html, .txt and .subject files take precedence over the
// corresponding parts of a .md file.
type FSResolver struct {
	fsys fs.FS
	md   goldmark.Markdown
}

// NewFSResolver creates a resolver reading from fsys.
func NewFSResolver(fsys fs.FS) *FSResolver {
	return &FSResolver{
		fsys: fsys,
		md:   goldmark.New(),
	}
}

// Resolve implements Resolver.
func (r *FSResolver) Resolve(ctx context.Context, ref Ref) (*Unit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := path.Join(ref.Folder, ref.File)
	if base == "." || !fs.ValidPath(base) {
		return nil, nil
	}

	unit := &Unit{Name: ref.Path()}
	found := false

	if data, ok, err := r.read(base + ".md"); err != nil {
		return nil, err
	} else if ok {
		if err := r.parseMarkdown(unit, base+".md", data); err != nil {
			return nil, err
		}
		found = true
	}

	if data, ok, err := r.read(base + ".html"); err != nil {
		return nil, err
	} else if ok {
		tmpl, err := template.New(base + ".html").Funcs(htmlFuncs()).Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s.html: %w", base, err)
		}
		unit.HTML = htmlRenderer(tmpl)
		found = true
	}

	for _, ext := range []string{".txt", ".text"} {
		data, ok, err := r.read(base + ext)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		tmpl, err := textTemplate.New(base + ext).Funcs(textFuncs()).Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse %s%s: %w", base, ext, err)
		}
		unit.Text = textRenderer(tmpl)
		found = true
		break
	}

	if data, ok, err := r.read(base + ".subject"); err != nil {
		return nil, err
	} else if ok {
		tmpl, err := textTemplate.New(base + ".subject").Funcs(textFuncs()).Parse(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parse %s.subject: %w", base, err)
		}
		unit.Subject = textRenderer(tmpl)
		found = true
	}

	if !found {
		return nil, nil
	}
	return unit, nil
}

func (r *FSResolver) read(name string) ([]byte, bool, error) {
	data, err := fs.ReadFile(r.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return data, true, nil
}

func (r *FSResolver) parseMarkdown(unit *Unit, name string, data []byte) error {
	meta, body, err := splitFrontMatter(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	bodyTmpl, err := textTemplate.New(name).Funcs(textFuncs()).Parse(body)
	if err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}

	render := textRenderer(bodyTmpl)
	unit.Text = render
	unit.HTML = func(c Context) (string, error) {
		src, err := render(c)
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(src), &buf); err != nil {
			return "", fmt.Errorf("convert markdown: %w", err)
		}
		return buf.String(), nil
	}

	for _, key := range []string{"Subject", "subject"} {
		subject, ok := meta[key].(string)
		if !ok {
			continue
		}
		subjectTmpl, err := textTemplate.New(name + ":subject").Funcs(textFuncs()).Parse(subject)
		if err != nil {
			return fmt.Errorf("parse %s subject: %w", name, err)
		}
		unit.Subject = textRenderer(subjectTmpl)
		break
	}

	return nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the body.
func splitFrontMatter(content []byte) (map[string]any, string, error) {
	delimiter := []byte("---")
	if !bytes.HasPrefix(content, delimiter) {
		return map[string]any{}, string(content), nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, delimiter), "\r\n")
	end := bytes.Index(rest, delimiter)
	if end == -1 {
		return nil, "", fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontMatter)
	}

	meta := map[string]any{}
	if header := bytes.TrimSpace(rest[:end]); len(header) > 0 {
		if err := yaml.Unmarshal(header, &meta); err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidFrontMatter, err)
		}
	}

	body := rest[end+len(delimiter):]
	body = bytes.TrimPrefix(body, []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))
	return meta, string(body), nil
}

func htmlRenderer(tmpl *template.Template) RenderFunc {
	return func(c Context) (string, error) {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, c); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}

func textRenderer(tmpl *textTemplate.Template) RenderFunc {
	return func(c Context) (string, error) {
		var buf strings.Builder
		if err := tmpl.Execute(&buf, c); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}
