package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/fatflowers/autoinspect/internal/store"
)

func TestTranslate(t *testing.T) {
	other := errors.New("boom")
	cases := []struct {
		in   error
		want error
	}{
		{nil, nil},
		{gorm.ErrRecordNotFound, store.ErrNotFound},
		{fmt.Errorf("wrapped: %w", gorm.ErrDuplicatedKey), store.ErrDuplicate},
		{other, other},
	}
	for _, tc := range cases {
		got := translate(tc.in)
		if tc.want == nil {
			assert.NoError(t, got)
			continue
		}
		assert.ErrorIs(t, got, tc.want)
	}
}

func TestOrderBy(t *testing.T) {
	def := orderBy(&store.ScanRequest{})
	assert.Equal(t, "created_at", def.Columns[0].Column.Name)
	assert.True(t, def.Columns[0].Desc)
	assert.Equal(t, "id", def.Columns[1].Column.Name)

	asc := orderBy(&store.ScanRequest{SortBy: "amount", SortOrder: "asc"})
	assert.Equal(t, "amount", asc.Columns[0].Column.Name)
	assert.False(t, asc.Columns[0].Desc)
	assert.False(t, asc.Columns[1].Desc)
}

func TestPartialIndexesCoverSingletonRules(t *testing.T) {
	assert.Len(t, partialIndexes, 3)
	for _, stmt := range partialIndexes {
		assert.Contains(t, stmt, "CREATE UNIQUE INDEX IF NOT EXISTS")
		assert.Contains(t, stmt, "WHERE status =")
	}
}
