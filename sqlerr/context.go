package sqlerr

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Context is the error-reporting context of a session. It is owned by one
// session, filled in while a call runs and reset when the call leaves,
// whatever the exit path.
type Context struct {
	SessionID uuid.UUID
	CallID    ulid.ULID
	Resource  string
	Activity  string
	Object    string
	SQL       string
}

// NewContext creates an empty context for a new session.
func NewContext() *Context {
	return &Context{SessionID: uuid.New()}
}

// Begin starts a new call: it stamps a fresh call id and records the
// activity and object. It returns a release func that resets the context.
func (c *Context) Begin(activity, object string) func() {
	c.CallID = ulid.Make()
	c.Activity = activity
	c.Object = object
	return c.Reset
}

// Reset clears everything but the session id.
func (c *Context) Reset() {
	c.CallID = ulid.ULID{}
	c.Resource = ""
	c.Activity = ""
	c.Object = ""
	c.SQL = ""
}

// Empty reports whether no call is in flight.
func (c *Context) Empty() bool {
	return c.CallID == (ulid.ULID{}) && c.Resource == "" && c.Activity == "" &&
		c.Object == "" && c.SQL == ""
}

func (c *Context) String() string {
	if c == nil || c.Empty() {
		return ""
	}
	var sb strings.Builder
	if c.Resource != "" {
		sb.WriteString("\n### The error may exist in ")
		sb.WriteString(c.Resource)
	}
	if c.Object != "" {
		sb.WriteString("\n### The error may involve ")
		sb.WriteString(c.Object)
	}
	if c.Activity != "" {
		sb.WriteString("\n### The error occurred while ")
		sb.WriteString(c.Activity)
	}
	if c.SQL != "" {
		sb.WriteString("\n### SQL: ")
		sb.WriteString(strings.Join(strings.Fields(c.SQL), " "))
	}
	if c.CallID != (ulid.ULID{}) {
		sb.WriteString("\n### Call: ")
		sb.WriteString(c.CallID.String())
	}
	return sb.String()
}

type contextKey struct{}

// WithContext attaches ec to ctx so that lower layers can annotate it.
func WithContext(ctx context.Context, ec *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ec)
}

// FromContext returns the error-reporting context attached to ctx. It never
// returns nil; without an attached context a throwaway one is returned.
func FromContext(ctx context.Context) *Context {
	if ec, ok := ctx.Value(contextKey{}).(*Context); ok && ec != nil {
		return ec
	}
	return &Context{}
}
