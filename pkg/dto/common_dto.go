package dto

type PaginationQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Bounds returns the limit and offset to query with.
func (q PaginationQuery) Bounds(defaultLimit int) (limit, offset int) {
	limit = q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

func NewPaginationMeta(page, limit int, total int64) PaginationMeta {
	if page <= 0 {
		page = 1
	}
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return PaginationMeta{CurrentPage: page, TotalPages: pages, TotalItems: total, Limit: limit}
}

// LevelStatus is the progress of a user through the level table. Level is
// always based on lifetime points and never demotes.
type LevelStatus struct {
	Level         int     `json:"level"`
	LevelName     string  `json:"level_name"`
	NextLevel     string  `json:"next_level"`
	CurrentPoints int64   `json:"current_points"`
	TargetPoints  int64   `json:"target_points"`
	Progress      float64 `json:"progress"` // Percentage
}
