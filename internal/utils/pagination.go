// internal/utils/pagination.go
package utils

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PaginationParams struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

type PaginationResult struct {
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
	Total int64       `json:"total"`
	Data  interface{} `json:"data"`
}

// GetPaginationParams reads skip/limit from the query. Limits outside
// [1, maxLimit] are clamped rather than rejected.
func GetPaginationParams(c *gin.Context, defaultLimit, maxLimit int) PaginationParams {
	skip, err := strconv.Atoi(c.DefaultQuery("skip", "0"))
	if err != nil || skip < 0 {
		skip = 0
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}

	return NormalizePagination(PaginationParams{Skip: skip, Limit: limit}, defaultLimit, maxLimit)
}

func NormalizePagination(params PaginationParams, defaultLimit, maxLimit int) PaginationParams {
	if params.Skip < 0 {
		params.Skip = 0
	}
	if params.Limit < 1 {
		params.Limit = defaultLimit
	}
	if maxLimit > 0 && params.Limit > maxLimit {
		params.Limit = maxLimit
	}
	return params
}

func ApplyPagination(db *gorm.DB, params PaginationParams) *gorm.DB {
	return db.Offset(params.Skip).Limit(params.Limit)
}

func CreatePaginationResult(data interface{}, total int64, params PaginationParams) PaginationResult {
	return PaginationResult{
		Skip:  params.Skip,
		Limit: params.Limit,
		Total: total,
		Data:  data,
	}
}

func SetPaginationHeaders(c *gin.Context, result PaginationResult) {
	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Skip", strconv.Itoa(result.Skip))
	c.Header("X-Limit", strconv.Itoa(result.Limit))
}
