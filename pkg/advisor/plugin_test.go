package advisor_test

import (
	"context"
	"testing"

	"github.com/ethpandaops/dbbench/pkg/advisor"
	"github.com/ethpandaops/dbbench/pkg/config"
	"github.com/ethpandaops/dbbench/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type post struct {
	ID       uint `gorm:"primaryKey"`
	AuthorID uint
	Title    string
}

func openInstrumented(t *testing.T, c advisor.Collector) *gorm.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteDatabaseConfig{Path: ":memory:"},
	}, advisor.NewPlugin(c, "test"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = database.Close(db) })

	// A single connection keeps the in-memory database alive between calls.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&post{}))

	return db
}

func TestPlugin_RecordsStatements(t *testing.T) {
	c := advisor.NewCollector(nil)
	db := openInstrumented(t, c)

	require.NoError(t, db.Create(&post{AuthorID: 1, Title: "before"}).Error)
	assert.Equal(t, 0, c.Count(), "queries outside a window are not recorded")

	c.Start()

	ctx := advisor.WithCallSite(context.Background(), advisor.CallSite{File: "posts.go", Line: 12})

	require.NoError(t, db.WithContext(ctx).Create(&post{AuthorID: 2, Title: "hello"}).Error)

	for i := uint(1); i <= 3; i++ {
		var posts []post
		require.NoError(t, db.WithContext(ctx).Where("author_id = ?", i).Find(&posts).Error)
	}

	require.NoError(t, db.WithContext(ctx).Model(&post{}).Where("id = ?", 1).Update("title", "x").Error)
	require.NoError(t, db.WithContext(ctx).Exec("DELETE FROM posts WHERE id = ?", 99).Error)

	c.Stop()

	queries := c.Queries()
	require.Len(t, queries, 6)

	for _, q := range queries {
		assert.Equal(t, "posts.go:12", q.Location())
		assert.Equal(t, "test", q.Connection)
		assert.GreaterOrEqual(t, q.TimeMS, 0.0)
		assert.NotEmpty(t, q.SQL)
	}

	assert.Contains(t, queries[0].SQL, "INSERT INTO")
	assert.Equal(t, []any{uint(1)}, queries[1].Bindings)

	groups := c.GroupByNormalized()
	assert.Len(t, groups, 4, "the three lookups share one normalized form")
}

func TestPlugin_StackAttribution(t *testing.T) {
	c := advisor.NewCollector(nil)
	db := openInstrumented(t, c)

	c.Start()

	var posts []post
	require.NoError(t, db.Find(&posts).Error)

	c.Stop()

	queries := c.Queries()
	require.Len(t, queries, 1)
	require.NotNil(t, queries[0].CallSite)
	assert.Contains(t, queries[0].CallSite.File, "plugin_test.go")
}
