// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

/*
TestPgx5DSN rewrites the postgres URL schemes and leaves the rest alone.
*/
func TestPgx5DSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"postgres", "postgres://u:p@db:5432/anisync", "pgx5://u:p@db:5432/anisync"},
		{"postgresql", "postgresql://u@db/anisync?sslmode=disable", "pgx5://u@db/anisync?sslmode=disable"},
		{"already_pgx5", "pgx5://db/anisync", "pgx5://db/anisync"},
		{"keyword_form", "host=db user=u", "host=db user=u"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pgx5DSN(tt.dsn))
		})
	}
}
