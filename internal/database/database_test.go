package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mx-space/blockdraft/internal/models"
)

func TestMigrateCreatesDraftTables(t *testing.T) {
	db, err := Open(sqlite.Open("file::memory:"), logger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))

	assert.True(t, db.Migrator().HasTable(&models.DraftModel{}))
	assert.True(t, db.Migrator().HasTable(&models.DraftHistoryModel{}))

	d := models.DraftModel{UserID: "u1", Blocks: models.BlockList{{Type: models.BlockHeading, Data: "Intro"}}}
	require.NoError(t, db.Create(&d).Error)
	assert.NotEmpty(t, d.ID)

	var back models.DraftModel
	require.NoError(t, db.First(&back, "id = ?", d.ID).Error)
	require.Len(t, back.Blocks, 1)
	assert.Equal(t, "Intro", back.Blocks[0].Data)
}
