package updates

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "plain",
			script: "UPDATE a SET x = 1;\nUPDATE b SET y = 2;",
			want:   []string{"UPDATE a SET x = 1", "UPDATE b SET y = 2"},
		},
		{
			name:   "no-trailing-semicolon",
			script: "DELETE FROM a",
			want:   []string{"DELETE FROM a"},
		},
		{
			name:   "quoted-semicolons",
			script: `INSERT INTO a VALUES ('x;y', "p;q", 'it''s;'); SELECT ` + "`odd;name`" + ` FROM a`,
			want:   []string{`INSERT INTO a VALUES ('x;y', "p;q", 'it''s;')`, "SELECT `odd;name` FROM a"},
		},
		{
			name:   "escaped-quote",
			script: `INSERT INTO a VALUES ('a\';b'); SELECT 1`,
			want:   []string{`INSERT INTO a VALUES ('a\';b')`, "SELECT 1"},
		},
		{
			name:   "comments",
			script: "-- header; ignored\n# also; ignored\nUPDATE a /* inline; */ SET x = 1;\n--\nSELECT 2 -- tail;",
			want:   []string{"UPDATE a   SET x = 1", "SELECT 2"},
		},
		{
			name:   "double-dash-without-space",
			script: "SELECT 3--1;",
			want:   []string{"SELECT 3--1"},
		},
		{
			name:   "empty",
			script: " ;\n; -- nothing\n",
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script))
		})
	}
}
