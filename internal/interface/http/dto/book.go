package dto

// CreateBookRequest HTTP创建图书请求
// 说明:创建接口是multipart/form-data(封面图片随表单上传),
// 文字字段用form tag绑定,封面文件在Handler中单独提取
type CreateBookRequest struct {
	Title  string `form:"title" binding:"required,max=200" example:"长安的荔枝"`
	Author string `form:"author" binding:"required,max=100" example:"马伯庸"`
	Genre  string `form:"genre" binding:"required,max=100" example:"历史小说"`
	Year   int    `form:"year" binding:"required,min=1,max=9999" example:"2022"`
}

// UpdateBookRequest HTTP更新图书请求
// 所有文字字段可选,缺省表示不修改;新封面文件同样在Handler中单独提取
type UpdateBookRequest struct {
	Title  string `form:"title" binding:"omitempty,max=200" example:"长安的荔枝"`
	Author string `form:"author" binding:"omitempty,max=100" example:"马伯庸"`
	Genre  string `form:"genre" binding:"omitempty,max=100" example:"历史小说"`
	Year   int    `form:"year" binding:"omitempty,min=1,max=9999" example:"2022"`
}

// RateBookRequest HTTP评分请求
// Grade用指针区分"未传"和"传了0":0是合法评分,不能当作缺省值
// UserID仅在匿名评分模式(rating.require_auth=false)下使用,
// 登录模式下以Token中的用户为准,请求体中的user_id被忽略
type RateBookRequest struct {
	Grade  *int `json:"grade" binding:"required" example:"4"`
	UserID uint `json:"user_id" binding:"omitempty" example:"1"`
}

// RatingItem HTTP评分明细项
type RatingItem struct {
	UserID uint `json:"user_id" example:"1"`
	Grade  int  `json:"grade" example:"4"`
}

// BookResponse HTTP图书响应
// 用于单个图书详情返回(含评分账本)
type BookResponse struct {
	ID            uint         `json:"id" example:"1"`
	Title         string       `json:"title" example:"长安的荔枝"`
	Author        string       `json:"author" example:"马伯庸"`
	Genre         string       `json:"genre" example:"历史小说"`
	Year          int          `json:"year" example:"2022"`
	CoverURL      string       `json:"cover_url" example:"/images/3f2a9c.jpg"`
	OwnerID       uint         `json:"owner_id" example:"1"`
	Ratings       []RatingItem `json:"ratings"`
	AverageRating float64      `json:"average_rating" example:"4.5"`
	RatingCount   int          `json:"rating_count" example:"2"`
	CreatedAt     string       `json:"created_at" example:"2024-01-15 10:30:00"`
}

// BookListItem HTTP图书列表项
// 列表查询时不返回评分明细(减少数据传输量)
type BookListItem struct {
	ID            uint    `json:"id" example:"1"`
	Title         string  `json:"title" example:"长安的荔枝"`
	Author        string  `json:"author" example:"马伯庸"`
	Genre         string  `json:"genre" example:"历史小说"`
	Year          int     `json:"year" example:"2022"`
	CoverURL      string  `json:"cover_url" example:"/images/3f2a9c.jpg"`
	AverageRating float64 `json:"average_rating" example:"4.5"`
	RatingCount   int     `json:"rating_count" example:"2"`
}

// ListBooksRequest HTTP图书列表请求
type ListBooksRequest struct {
	Page     int    `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
	Keyword  string `form:"keyword" binding:"omitempty,max=100" example:"荔枝"`
	SortBy   string `form:"sort_by" binding:"omitempty,oneof=year_asc year_desc created_at_desc" example:"created_at_desc"`
}

// ListBooksResponse HTTP图书列表响应
type ListBooksResponse struct {
	List  []BookListItem `json:"list"`
	Total int64          `json:"total" example:"100"`
	Page  int            `json:"page" example:"1"`
	Size  int            `json:"size" example:"20"`
}

// TopRatedRequest HTTP排行榜请求
type TopRatedRequest struct {
	K int `form:"k" binding:"omitempty,min=1,max=50" example:"3"`
}

// TopRatedResponse HTTP排行榜响应
// 按平均分降序;平均分相同按创建先后;没有评分的书不上榜
type TopRatedResponse struct {
	List []BookListItem `json:"list"`
}
