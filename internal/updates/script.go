package updates

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// CompileScript interprets the source of an imperative update. The script
// is a file in package update declaring
//
//	func Run(ctx context.Context, db *sql.DB) error
//
// and may import any standard library package.
func CompileScript(src string) (Func, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(src); err != nil {
		return nil, fmt.Errorf("failed to evaluate script: %w", err)
	}
	v, err := i.Eval("update.Run")
	if err != nil {
		return nil, fmt.Errorf("script does not define update.Run: %w", err)
	}
	fn, ok := v.Interface().(func(context.Context, *sql.DB) error)
	if !ok {
		return nil, fmt.Errorf("update.Run has type %s, want func(context.Context, *sql.DB) error", v.Type())
	}
	return fn, nil
}
