// Package console is a messaging gateway that prints outbound messages to a
// terminal instead of calling a provider. It backs the chat command and local
// development.
package console

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/concierge/pkg/domain"
)

// Gateway implements ports.MessagingGateway by writing to an io.Writer.
type Gateway struct {
	mu     sync.Mutex
	out    io.Writer
	render func(string) (string, error)
	seq    atomic.Int64
	now    func() time.Time
}

type Option func(*Gateway)

// WithRenderer formats each message before it is written, typically a
// markdown renderer when out is a terminal.
func WithRenderer(render func(string) (string, error)) Option {
	return func(g *Gateway) {
		if render != nil {
			g.render = render
		}
	}
}

func New(out io.Writer, opts ...Option) *Gateway {
	g := &Gateway{
		out: out,
		render: func(s string) (string, error) {
			return s + "\n", nil
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ready always succeeds.
func (g *Gateway) Ready(ctx context.Context) error {
	return nil
}

func (g *Gateway) Send(ctx context.Context, req domain.SendRequest) (domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.Receipt{}, err
	}

	text, err := g.render(Format(req))
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("failed to render message: %w", err)
	}

	g.mu.Lock()
	_, err = io.WriteString(g.out, text)
	g.mu.Unlock()
	if err != nil {
		return domain.Receipt{}, fmt.Errorf("failed to write message: %w", err)
	}

	id := g.seq.Add(1)
	return domain.Receipt{
		ID:     "console-" + strconv.FormatInt(id, 10),
		To:     req.To,
		Status: "delivered",
		SentAt: g.now(),
	}, nil
}

// Format renders a request as markdown. Template sends have no local body,
// so the template id and its variables are listed instead.
func Format(req domain.SendRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**→ %s**\n\n", req.To)

	if req.TemplateID == "" {
		b.WriteString(req.Body)
		return b.String()
	}

	fmt.Fprintf(&b, "_template `%s`_\n", req.TemplateID)
	keys := make([]string, 0, len(req.Variables))
	for k := range req.Variables {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		c, errC := strconv.Atoi(keys[j])
		if errA == nil && errC == nil {
			return a < c
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Fprintf(&b, "\n- `%s`: %s", k, req.Variables[k])
	}
	return b.String()
}
