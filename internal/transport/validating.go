package transport

import (
	"context"
	"io"

	"github.com/lattiq/mailservice/internal/core"
)

// Validating wraps t so every message is validated before delivery.
// Wrapping an already validating transport returns it unchanged.
func Validating(t core.Transport) core.Transport {
	if _, ok := t.(*validating); ok {
		return t
	}
	return &validating{next: t}
}

type validating struct {
	next core.Transport
}

func (v *validating) Send(ctx context.Context, msg *core.Message) (*core.Result, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return v.next.Send(ctx, msg)
}

func (v *validating) Name() string {
	return v.next.Name()
}

// Close closes the wrapped transport when it holds resources.
func (v *validating) Close() error {
	if c, ok := v.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Unwrap returns the wrapped transport.
func (v *validating) Unwrap() core.Transport {
	return v.next
}

// Unwrap returns the transport inside a validating wrapper, or t itself.
func Unwrap(t core.Transport) core.Transport {
	if u, ok := t.(interface{ Unwrap() core.Transport }); ok {
		return u.Unwrap()
	}
	return t
}
