package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mx-space/blockdraft/internal/pkg/response"
)

const (
	DefaultPage = 1
	DefaultSize = 10
	MaxSize     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page int
	Size int
}

// Offset is the number of rows skipped before the page.
func (q Query) Offset() int { return (q.Page - 1) * q.Size }

// normalize clamps page to >= 1 and size to 1..MaxSize.
func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Size < 1 {
		q.Size = DefaultSize
	}
	if q.Size > MaxSize {
		q.Size = MaxSize
	}
	return q
}

// FromContext reads ?page and ?size. Bad values fall back to the defaults.
func FromContext(c *gin.Context) Query {
	return Query{
		Page: parseIntOr(c.Query("page"), DefaultPage),
		Size: parseIntOr(c.Query("size"), DefaultSize),
	}.normalize()
}

// Paginate counts the rows matched by db, then loads one page of them.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	q = q.normalize()

	var total int64
	if err := db.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}
	if err := db.Offset(q.Offset()).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}, nil
}

// Collect walks every page of fetch at MaxSize and returns all items.
func Collect[T any](fetch func(q Query) ([]T, response.Pagination, error)) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		items, pag, err := fetch(Query{Page: page, Size: MaxSize})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if !pag.HasNextPage {
			return all, nil
		}
	}
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
