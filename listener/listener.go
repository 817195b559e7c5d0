// Package listener is the interception pipeline run between statement
// lookup and execution. Each listener may replace the statement, usually a
// rewritten clone, and the parameter before the executor sees them.
package listener

import (
	"github.com/Konsultn-Engineering/sqlsession/mapping"
)

// Context carries the statement and parameter of one call through the
// pipeline. Every listener gets the same instance and sees what the
// previous listeners left in it.
type Context struct {
	statement *mapping.Statement
	parameter any
}

// NewContext starts a pipeline run from a cloned statement and the
// normalized parameter.
func NewContext(statement *mapping.Statement, parameter any) *Context {
	return &Context{statement: statement, parameter: parameter}
}

func (c *Context) Statement() *mapping.Statement { return c.statement }

func (c *Context) SetStatement(s *mapping.Statement) { c.statement = s }

func (c *Context) Parameter() any { return c.parameter }

func (c *Context) SetParameter(p any) { c.parameter = p }

// Listener observes and may rewrite a statement before it executes. An
// error aborts the call.
type Listener interface {
	OnStatement(ctx *Context) error
}

// Func adapts a function to Listener.
type Func func(ctx *Context) error

func (f Func) OnStatement(ctx *Context) error { return f(ctx) }

// Pipeline runs listeners in registration order.
type Pipeline []Listener

// Run invokes every listener in order on ctx and stops at the first error.
func (p Pipeline) Run(ctx *Context) error {
	for _, l := range p {
		if err := l.OnStatement(ctx); err != nil {
			return err
		}
	}
	return nil
}
