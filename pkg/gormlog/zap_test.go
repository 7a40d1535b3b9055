package gormlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShortCaller(t *testing.T) {
	cases := map[string]string{
		"/Users/alex/repo/internal/platform/db/store.go:38": "internal/platform/db/store.go:38",
		`C:\repo\project\pkg\x\y.go:12`:                    "pkg/x/y.go:12",
		"/opt/go/mod/gorm.io/gorm/callbacks.go:99":          "gorm.io/gorm/callbacks.go:99",
		"main.go:1":                                          "main.go:1",
		"":                                                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, shortCaller(in), in)
	}
}
