package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/shepherrrd/schemasync/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	cause := stderrors.New("Table 'users' already exists")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "msg-only",
			err:  errors.New(errors.Configuration, "schema.(TableSpec).Validate", "table has no columns"),
			want: "schema.(TableSpec).Validate: table has no columns",
		},
		{
			name: "kind-fallback",
			err:  errors.New(errors.Unsupported, "ddl.New", ""),
			want: "ddl.New: unsupported operation",
		},
		{
			name: "wrapped",
			err:  errors.Wrap(cause, errors.DDLExecution, "ddl.(Synchronizer).Commit", "create users"),
			want: "ddl.(Synchronizer).Commit: create users: Table 'users' already exists",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrap(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.Ledger, "op", "msg"))

	inner := errors.New(errors.ManifestParse, "manifest.Parse", "line 3: bad token")
	outer := errors.Wrap(inner, errors.Unknown, "migrations.(Runner).Run", "module crm")
	assert.Equal(t, errors.ManifestParse, errors.KindOf(outer))
}

func TestIs(t *testing.T) {
	cause := stderrors.New("boom")
	inner := errors.Wrap(cause, errors.UpdateScript, "updates.(DirSource).Apply", "update 3")
	outer := errors.Wrap(inner, errors.Ledger, "migrations.(Runner).apply", "")
	wrapped := fmt.Errorf("run failed: %w", outer)

	assert.True(t, errors.Is(wrapped, errors.Ledger))
	assert.True(t, errors.Is(wrapped, errors.UpdateScript))
	assert.False(t, errors.Is(wrapped, errors.DDLExecution))
	assert.False(t, errors.Is(cause, errors.UpdateScript))
	assert.True(t, stderrors.Is(wrapped, cause))
}
