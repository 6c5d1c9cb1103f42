package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appbook "github.com/xiebiao/grimoire/internal/application/book"
	"github.com/xiebiao/grimoire/internal/interface/http/dto"
	"github.com/xiebiao/grimoire/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/grimoire/pkg/errors"
	"github.com/xiebiao/grimoire/pkg/response"
)

// BookHandler 图书HTTP处理器
type BookHandler struct {
	createBookUseCase *appbook.CreateBookUseCase
	getBookUseCase    *appbook.GetBookUseCase
	updateBookUseCase *appbook.UpdateBookUseCase
	deleteBookUseCase *appbook.DeleteBookUseCase
	listBooksUseCase  *appbook.ListBooksUseCase
	rateBookUseCase   *appbook.RateBookUseCase
	topRatedUseCase   *appbook.TopRatedUseCase
}

// NewBookHandler 创建图书处理器
func NewBookHandler(
	createBookUseCase *appbook.CreateBookUseCase,
	getBookUseCase *appbook.GetBookUseCase,
	updateBookUseCase *appbook.UpdateBookUseCase,
	deleteBookUseCase *appbook.DeleteBookUseCase,
	listBooksUseCase *appbook.ListBooksUseCase,
	rateBookUseCase *appbook.RateBookUseCase,
	topRatedUseCase *appbook.TopRatedUseCase,
) *BookHandler {
	return &BookHandler{
		createBookUseCase: createBookUseCase,
		getBookUseCase:    getBookUseCase,
		updateBookUseCase: updateBookUseCase,
		deleteBookUseCase: deleteBookUseCase,
		listBooksUseCase:  listBooksUseCase,
		rateBookUseCase:   rateBookUseCase,
		topRatedUseCase:   topRatedUseCase,
	}
}

// CreateBook 创建图书
// @Summary      创建图书
// @Description  登录用户创建图书,封面图片随表单上传(必填)
// @Tags         图书
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        title  formData string true  "书名"
// @Param        author formData string true  "作者"
// @Param        genre  formData string true  "分类"
// @Param        year   formData int    true  "出版年份"
// @Param        cover  formData file   true  "封面图片(JPEG/PNG/GIF/WebP)"
// @Success      200 {object} response.Response{data=dto.BookResponse}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      401 {object} response.Response "未登录"
// @Router       /api/v1/books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	// 1. 参数绑定与验证(multipart表单)
	var req dto.CreateBookRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	// 2. 提取封面文件
	fileHeader, err := c.FormFile("cover")
	if err != nil {
		response.ErrorWithCode(c, 40900, "缺少封面图片")
		return
	}
	cover, err := fileHeader.Open()
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "读取封面图片失败"))
		return
	}
	defer cover.Close()

	// 3. 获取当前登录用户ID
	userID := middleware.MustGetUserID(c)

	// 4. 调用应用层用例
	result, err := h.createBookUseCase.Execute(c.Request.Context(), appbook.CreateBookRequest{
		Title:   req.Title,
		Author:  req.Author,
		Genre:   req.Genre,
		Year:    req.Year,
		OwnerID: userID,
		Cover:   cover,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toBookDTO(result))
}

// GetBook 图书详情
// @Summary      图书详情
// @Description  查询单本图书(含评分明细)
// @Tags         图书
// @Produce      json
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response{data=dto.BookResponse}
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	bookID, ok := parseIDParam(c)
	if !ok {
		return
	}

	result, err := h.getBookUseCase.Execute(c.Request.Context(), bookID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toBookDTO(result))
}

// UpdateBook 更新图书
// @Summary      更新图书
// @Description  创建者更新图书信息,可选上传新封面(旧封面自动释放)
// @Tags         图书
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id     path     int    true  "图书ID"
// @Param        title  formData string false "书名"
// @Param        author formData string false "作者"
// @Param        genre  formData string false "分类"
// @Param        year   formData int    false "出版年份"
// @Param        cover  formData file   false "新封面图片"
// @Success      200 {object} response.Response{data=dto.BookResponse}
// @Failure      401 {object} response.Response "未登录"
// @Failure      403 {object} response.Response "非创建者"
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
	bookID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req dto.UpdateBookRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	userID := middleware.MustGetUserID(c)

	ucReq := appbook.UpdateBookRequest{
		BookID: bookID,
		UserID: userID,
		Title:  req.Title,
		Author: req.Author,
		Genre:  req.Genre,
		Year:   req.Year,
	}

	// 新封面可选
	if fileHeader, err := c.FormFile("cover"); err == nil {
		cover, err := fileHeader.Open()
		if err != nil {
			response.Error(c, apperrors.Wrap(err, "读取封面图片失败"))
			return
		}
		defer cover.Close()
		ucReq.Cover = cover
	}

	result, err := h.updateBookUseCase.Execute(c.Request.Context(), ucReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toBookDTO(result))
}

// DeleteBook 删除图书
// @Summary      删除图书
// @Description  创建者删除图书,封面图片一并释放
// @Tags         图书
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "图书ID"
// @Success      200 {object} response.Response
// @Failure      401 {object} response.Response "未登录"
// @Failure      403 {object} response.Response "非创建者"
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	bookID, ok := parseIDParam(c)
	if !ok {
		return
	}

	userID := middleware.MustGetUserID(c)

	if err := h.deleteBookUseCase.Execute(c.Request.Context(), bookID, userID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, nil)
}

// ListBooks 图书列表
// @Summary      图书列表
// @Description  分页查询图书,支持关键词搜索(标题/作者/分类)与排序
// @Tags         图书
// @Produce      json
// @Param        page      query int    false "页码(默认1)"
// @Param        page_size query int    false "每页数量(默认10,最大100)"
// @Param        keyword   query string false "搜索关键词"
// @Param        sort_by   query string false "排序(year_asc/year_desc/created_at_desc)"
// @Success      200 {object} response.Response{data=dto.ListBooksResponse}
// @Router       /api/v1/books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	var req dto.ListBooksRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	result, err := h.listBooksUseCase.Execute(c.Request.Context(), appbook.ListBooksRequest{
		Page:     req.Page,
		PageSize: req.PageSize,
		Keyword:  req.Keyword,
		SortBy:   req.SortBy,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	list := make([]dto.BookListItem, len(result.Books))
	for i, b := range result.Books {
		list[i] = toBookListItem(b)
	}

	page := req.Page
	if page <= 0 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 {
		size = 10
	}

	response.Success(c, &dto.ListBooksResponse{
		List:  list,
		Total: result.Total,
		Page:  page,
		Size:  size,
	})
}

// RateBook 提交评分
// @Summary      提交评分
// @Description  给一本书打分(0-5整数),每个用户对同一本书只能评一次
// @Tags         评分
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path int                 true "图书ID"
// @Param        request body dto.RateBookRequest true "评分"
// @Success      200 {object} response.Response{data=dto.BookResponse} "更新后的图书"
// @Failure      400 {object} response.Response "评分超出范围/重复评分"
// @Failure      401 {object} response.Response "未登录"
// @Failure      404 {object} response.Response "图书不存在"
// @Router       /api/v1/books/{id}/rating [post]
func (h *BookHandler) RateBook(c *gin.Context) {
	bookID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req dto.RateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	// 评分人:优先取登录用户,匿名模式下回退到请求体
	userID := middleware.GetUserID(c)
	if userID == 0 {
		userID = req.UserID
	}
	if userID == 0 {
		response.ErrorWithCode(c, 40100, "请先登录")
		return
	}

	result, err := h.rateBookUseCase.Execute(c.Request.Context(), appbook.RateBookRequest{
		BookID: bookID,
		UserID: userID,
		Grade:  *req.Grade,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, toBookDTO(result))
}

// TopRated 评分排行榜
// @Summary      评分排行榜
// @Description  返回平均分最高的前K本书(默认3本),按平均分降序
// @Tags         评分
// @Produce      json
// @Param        k query int false "返回数量(默认3,最大50)"
// @Success      200 {object} response.Response{data=dto.TopRatedResponse}
// @Router       /api/v1/books/best-rating [get]
func (h *BookHandler) TopRated(c *gin.Context) {
	var req dto.TopRatedRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, 40900, "参数错误: "+err.Error())
		return
	}

	result, err := h.topRatedUseCase.Execute(c.Request.Context(), appbook.TopRatedRequest{K: req.K})
	if err != nil {
		response.Error(c, err)
		return
	}

	list := make([]dto.BookListItem, len(result.Books))
	for i, b := range result.Books {
		list[i] = toBookListItem(b)
	}

	response.Success(c, &dto.TopRatedResponse{List: list})
}

// =========================================
// 辅助函数
// =========================================

// parseIDParam 解析URL路径中的图书ID
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.ErrorWithCode(c, 40900, "无效的图书ID")
		return 0, false
	}
	return uint(id), true
}

// toBookDTO 应用层DTO → HTTP DTO
func toBookDTO(b *appbook.BookResponse) *dto.BookResponse {
	ratings := make([]dto.RatingItem, len(b.Ratings))
	for i, r := range b.Ratings {
		ratings[i] = dto.RatingItem{
			UserID: r.UserID,
			Grade:  r.Grade,
		}
	}

	return &dto.BookResponse{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		Year:          b.Year,
		CoverURL:      b.CoverURL,
		OwnerID:       b.OwnerID,
		Ratings:       ratings,
		AverageRating: b.AverageRating,
		RatingCount:   b.RatingCount,
		CreatedAt:     b.CreatedAt,
	}
}

// toBookListItem 应用层摘要DTO → HTTP列表项
func toBookListItem(b *appbook.BookSummary) dto.BookListItem {
	return dto.BookListItem{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Genre:         b.Genre,
		Year:          b.Year,
		CoverURL:      b.CoverURL,
		AverageRating: b.AverageRating,
		RatingCount:   b.RatingCount,
	}
}
