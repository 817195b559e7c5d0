package listener

import (
	"go.uber.org/zap"
)

// Logging writes every statement that reaches it to a zap logger at debug
// level. Register it last to log what actually executes.
type Logging struct {
	logger *zap.Logger
}

func NewLogging(logger *zap.Logger) *Logging {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logging{logger: logger.Named("statement")}
}

func (l *Logging) OnStatement(ctx *Context) error {
	if ce := l.logger.Check(zap.DebugLevel, "statement"); ce != nil {
		stmt := ctx.Statement()
		fields := []zap.Field{
			zap.String("id", stmt.ID()),
			zap.Stringer("kind", stmt.Kind()),
			zap.String("sql", stmt.SQL()),
		}
		if b, err := stmt.BoundSQL(ctx.Parameter()); err == nil {
			if args, err := b.Args(); err == nil {
				fields = append(fields, zap.Int("args", len(args)))
			}
		}
		ce.Write(fields...)
	}
	return nil
}
