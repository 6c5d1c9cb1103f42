package book

import (
	apperrors "github.com/xiebiao/grimoire/pkg/errors"
)

// 图书领域错误定义
var (
	// ErrBookNotFound 图书不存在
	ErrBookNotFound = apperrors.New(apperrors.ErrCodeBookNotFound, "图书不存在")

	// ErrAlreadyRated 同一用户重复评分
	ErrAlreadyRated = apperrors.New(apperrors.ErrCodeAlreadyRated, "您已经给这本书评过分了")

	// ErrInvalidGrade 评分超出范围
	ErrInvalidGrade = apperrors.New(apperrors.ErrCodeInvalidGrade, "评分必须是0-5之间的整数")

	// ErrMissingFields 必填字段缺失
	ErrMissingFields = apperrors.New(apperrors.ErrCodeInvalidParams, "书名、作者、分类、出版年份均为必填")

	// ErrNotOwner 无权操作此图书
	ErrNotOwner = apperrors.New(apperrors.ErrCodeForbidden, "只有图书的创建者可以修改或删除")
)
