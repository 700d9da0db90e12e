// Package templates resolves named message templates and renders them.
//
// A template is a Unit with three independent slots (HTML, Text and
// Subject). Any slot may be absent: a missing text slot is derived from the
// rendered HTML, a missing subject is left empty for the caller to default.
package templates

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lattiq/mailservice/internal/core"
	"github.com/lattiq/mailservice/internal/layout"
)

// Context is the data a template slot renders against.
type Context struct {
	Data      map[string]any
	Brand     core.Brand
	Recipient core.Recipient
}

// RenderFunc renders one slot of a template.
type RenderFunc func(Context) (string, error)

// Unit is a resolved template.
type Unit struct {
	Name    string
	HTML    RenderFunc
	Text    RenderFunc
	Subject RenderFunc
}

// SlotError reports which slot of a template failed to render.
type SlotError struct {
	Template string
	Slot     string
	Err      error
}

func (e *SlotError) Error() string {
	return "template " + e.Template + ": render " + e.Slot + ": " + e.Err.Error()
}

func (e *SlotError) Unwrap() error { return e.Err }

// Render executes every present slot. The first failing slot aborts rendering.
func (u *Unit) Render(ctx Context) (core.Rendered, error) {
	var out core.Rendered
	var err error

	if u.HTML != nil {
		if out.HTML, err = u.HTML(ctx); err != nil {
			return core.Rendered{}, &SlotError{Template: u.Name, Slot: "html", Err: err}
		}
	}

	if u.Text != nil {
		if out.Text, err = u.Text(ctx); err != nil {
			return core.Rendered{}, &SlotError{Template: u.Name, Slot: "text", Err: err}
		}
	} else {
		out.Text = layout.HTMLToText(out.HTML)
	}

	if u.Subject != nil {
		subject, err := u.Subject(ctx)
		if err != nil {
			return core.Rendered{}, &SlotError{Template: u.Name, Slot: "subject", Err: err}
		}
		out.Subject = strings.TrimSpace(subject)
	}

	return out, nil
}

// Ref is a parsed template name.
type Ref struct {
	Name   string
	Folder string
	File   string
}

// Path returns the slash separated location of the template.
func (r Ref) Path() string {
	return r.Folder + "/" + r.File
}

// ParseName splits "folder/file" at the first separator. A bare name is
// lower-cased and used as both folder and file.
func ParseName(name string) Ref {
	name = strings.TrimSpace(name)
	if folder, file, ok := strings.Cut(name, "/"); ok {
		return Ref{Name: name, Folder: folder, File: file}
	}

	lower := cases.Lower(language.Und).String(name)
	return Ref{Name: name, Folder: lower, File: lower}
}

// Resolver locates a template. It returns (nil, nil) when the template does not exist.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (*Unit, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, ref Ref) (*Unit, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, ref Ref) (*Unit, error) {
	return f(ctx, ref)
}

// MapResolver serves units keyed by "folder/file".
type MapResolver map[string]*Unit

// Resolve implements Resolver.
func (m MapResolver) Resolve(_ context.Context, ref Ref) (*Unit, error) {
	return m[ref.Path()], nil
}

// Chain returns a Resolver that asks each resolver in turn and returns the
// first unit found. Errors stop the chain.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, ref Ref) (*Unit, error) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			unit, err := r.Resolve(ctx, ref)
			if err != nil {
				return nil, err
			}
			if unit != nil {
				return unit, nil
			}
		}
		return nil, nil
	})
}
