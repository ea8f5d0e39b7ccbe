package advisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallSiteResolver_Resolve(t *testing.T) {
	tests := []struct {
		name   string
		root   string
		extra  []string
		frames []Frame
		want   string
	}{
		{
			name: "first non-framework frame",
			frames: []Frame{
				{File: "/usr/local/go/src/database/sql/sql.go", Line: 1, Function: "database/sql.(*DB).QueryContext"},
				{File: "/go/pkg/mod/gorm.io/gorm@v1.31.1/finisher_api.go", Line: 2, Function: "gorm.io/gorm.(*DB).Find"},
				{File: "/src/app/repo.go", Line: 17, Function: "example.com/app.(*Repo).List"},
				{File: "/src/app/main.go", Line: 3, Function: "main.main"},
			},
			want: "/src/app/repo.go:17",
		},
		{
			name:  "project root fallback",
			root:  "/src/app",
			extra: []string{"example.com/app"},
			frames: []Frame{
				{File: "/go/pkg/mod/gorm.io/gorm@v1.31.1/finisher_api.go", Line: 2, Function: "gorm.io/gorm.(*DB).Find"},
				{File: "/src/app/repo.go", Line: 17, Function: "example.com/app.(*Repo).List"},
			},
			want: "/src/app/repo.go:17",
		},
		{
			name: "nothing qualifies",
			frames: []Frame{
				{File: "/go/pkg/mod/gorm.io/gorm@v1.31.1/finisher_api.go", Line: 2, Function: "gorm.io/gorm.(*DB).Find"},
				{Function: "main.main"},
			},
			want: UnknownLocation,
		},
		{
			name:  "type qualified function",
			extra: []string{"Vendor.Lib."},
			frames: []Frame{
				{File: "/lib/x.go", Line: 1, Type: "Vendor.Lib", Function: "Run"},
				{File: "/src/app/y.go", Line: 9, Type: "App.Job", Function: "Handle"},
			},
			want: "/src/app/y.go:9",
		},
		{
			name: "empty backtrace",
			want: UnknownLocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewCallSiteResolver(tt.root, tt.extra...)

			assert.Equal(t, tt.want, r.Resolve(tt.frames).String())
		})
	}
}

func TestCallSiteFromContext(t *testing.T) {
	_, ok := CallSiteFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithCallSite(context.Background(), CallSite{File: "w.yaml", Line: 3})

	site, ok := CallSiteFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "w.yaml:3", site.String())
}

func TestCallSite_String(t *testing.T) {
	var nilSite *CallSite

	assert.Equal(t, UnknownLocation, nilSite.String())
	assert.Equal(t, UnknownLocation, (&CallSite{}).String())
	assert.Equal(t, "x.go", (&CallSite{File: "x.go"}).String())
	assert.Equal(t, "x.go:4", (&CallSite{File: "x.go", Line: 4}).String())
}

func TestCaptureFrames(t *testing.T) {
	frames := CaptureFrames(0)
	require.NotEmpty(t, frames)
	assert.Contains(t, frames[0].Function, "TestCaptureFrames")
}
