package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "report id collapsed",
			path: "/api/reports/2f9f9f3a-9df1-4a6d-8a6e-0c1f6f3b9a11",
			want: "/api/reports/{id}",
		},
		{
			name: "id inside subresource path",
			path: "/api/reports/2f9f9f3a-9df1-4a6d-8a6e-0c1f6f3b9a11/queries",
			want: "/api/reports/{id}/queries",
		},
		{
			name: "artifact keys collapse to one series",
			path: "/files/reports/2f9f9f3a-9df1-4a6d-8a6e-0c1f6f3b9a11/thumbnail.jpg",
			want: "/files/{path}",
		},
		{
			name: "static path unchanged",
			path: "/api/reports",
			want: "/api/reports",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}
