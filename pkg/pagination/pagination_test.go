// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package pagination_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/anisync/pkg/pagination"
)

/*
TestParams_Offset checks the page to offset conversion used by list views.
*/
func TestParams_Offset(t *testing.T) {
	assert.Equal(t, 0, pagination.Params{Page: 1, Limit: 50}.Offset())
	assert.Equal(t, 0, pagination.Params{Page: 0, Limit: 50}.Offset())
	assert.Equal(t, 100, pagination.Params{Page: 3, Limit: 50}.Offset())
	assert.Equal(t, 3, pagination.TotalPages(101, 50))
	assert.Equal(t, 0, pagination.TotalPages(10, 0))
}

/*
TestWindowFromRequest covers defaults and rejected bounds.
*/
func TestWindowFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   pagination.Window
		hasErr bool
	}{
		{"defaults", "", pagination.Window{Limit: 100, Offset: 0}, false},
		{"explicit", "?limit=50&offset=100", pagination.Window{Limit: 50, Offset: 100}, false},
		{"upper_bound", "?limit=1000", pagination.Window{Limit: 1000}, false},
		{"limit_zero", "?limit=0", pagination.Window{}, true},
		{"limit_too_large", "?limit=1001", pagination.Window{}, true},
		{"limit_not_int", "?limit=abc", pagination.Window{}, true},
		{"negative_offset", "?offset=-1", pagination.Window{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/"+tt.query, nil)
			got, err := pagination.WindowFromRequest(req, pagination.DefaultLimit, pagination.MaxLimit)
			if tt.hasErr {
				var rangeErr *pagination.RangeError
				require.ErrorAs(t, err, &rangeErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
