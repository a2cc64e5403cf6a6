package pagination

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mx-space/blockdraft/internal/pkg/response"
)

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query string
		want  Query
	}{
		{"", Query{Page: 1, Size: 10}},
		{"?page=3&size=25", Query{Page: 3, Size: 25}},
		{"?page=0&size=0", Query{Page: 1, Size: 10}},
		{"?page=x&size=1000", Query{Page: 1, Size: MaxSize}},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/drafts"+tc.query, nil)
		assert.Equal(t, tc.want, FromContext(c), tc.query)
	}
}

type row struct {
	ID   int `gorm:"primaryKey"`
	Name string
}

func TestPaginate(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&row{}))
	for i := 1; i <= 7; i++ {
		require.NoError(t, db.Create(&row{ID: i, Name: "r"}).Error)
	}

	var rows []row
	pag, err := Paginate(db.Model(&row{}).Order("id"), Query{Page: 2, Size: 3}, &rows)
	require.NoError(t, err)
	assert.EqualValues(t, 7, pag.Total)
	assert.Equal(t, 3, pag.TotalPage)
	assert.True(t, pag.HasNextPage)
	require.Len(t, rows, 3)
	assert.Equal(t, 4, rows[0].ID)
}

func TestCollect(t *testing.T) {
	calls := 0
	all, err := Collect(func(q Query) ([]int, response.Pagination, error) {
		calls++
		assert.Equal(t, MaxSize, q.Size)
		return []int{q.Page}, response.Pagination{HasNextPage: q.Page < 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, all)
	assert.Equal(t, 3, calls)

	_, err = Collect(func(Query) ([]int, response.Pagination, error) {
		return nil, response.Pagination{}, errors.New("boom")
	})
	assert.Error(t, err)
}
