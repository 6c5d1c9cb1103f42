package book

import (
	"time"
)

// 评分取值范围
// 业务规则:评分是0-5的整数(含两端),超出范围的评分在进入账本前就被拒绝
const (
	MinGrade = 0
	MaxGrade = 5
)

// Rating 单个用户对一本书的评分
// 设计说明:
// 1. 评分只增不改:同一用户对同一本书只能评一次,不允许修改或删除
// 2. (BookID, UserID)在数据库层有联合唯一索引,作为防重复的最后一道防线
type Rating struct {
	UserID    uint      // 评分用户ID
	Grade     int       // 评分(0-5整数)
	CreatedAt time.Time // 评分时间
}

// Book 图书实体(聚合根)
// DDD设计说明:
// 1. Book是图书聚合的根实体,评分账本(Ratings+AverageRating)是聚合的一部分
// 2. AverageRating是派生字段,必须始终等于Ratings中所有Grade的算术平均值
//    (无评分时为0);任何修改账本的操作都必须同时重算平均分
// 3. CoverURL是封面图片的访问地址(由图片存储服务生成,对本实体不透明)
// 4. OwnerID是创建者用户ID,修改/删除图书需要所有权校验
type Book struct {
	ID            uint
	Title         string   // 书名
	Author        string   // 作者
	Genre         string   // 分类
	Year          int      // 出版年份
	CoverURL      string   // 封面图片URL
	OwnerID       uint     // 创建者用户ID(关联User表)
	Ratings       []Rating // 评分账本(每个用户最多一条;列表投影场景下可能不加载)
	AverageRating float64  // 派生字段:评分平均值
	RatingCount   int      // 派生字段:评分数量(列表投影不加载Ratings时仍可用)
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewBook 创建新图书(工厂方法)
// 新建图书的评分账本为空,平均分为0
func NewBook(title, author, genre string, year int, coverURL string, ownerID uint) *Book {
	now := time.Now()
	return &Book{
		Title:         title,
		Author:        author,
		Genre:         genre,
		Year:          year,
		CoverURL:      coverURL,
		OwnerID:       ownerID,
		Ratings:       []Rating{},
		AverageRating: 0,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsValidGrade 校验评分是否在合法范围内
func IsValidGrade(grade int) bool {
	return grade >= MinGrade && grade <= MaxGrade
}

// HasRatedBy 检查指定用户是否已经评过分
func (b *Book) HasRatedBy(userID uint) bool {
	for _, r := range b.Ratings {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// AddRating 追加一条评分并重算平均分(领域行为)
// 业务规则:
// 1. 评分必须是0-5的整数
// 2. 同一用户只能评一次,重复评分被拒绝(不合并、不覆盖)
// 3. 追加成功后AverageRating立即重算,账本与平均分永远同步变化
func (b *Book) AddRating(userID uint, grade int) error {
	if !IsValidGrade(grade) {
		return ErrInvalidGrade
	}
	if b.HasRatedBy(userID) {
		return ErrAlreadyRated
	}

	b.Ratings = append(b.Ratings, Rating{
		UserID:    userID,
		Grade:     grade,
		CreatedAt: time.Now(),
	})
	b.recomputeAverage()
	b.UpdatedAt = time.Now()
	return nil
}

// recomputeAverage 重算平均分与评分数
// 不变式:AverageRating == sum(Grade)/len(Ratings),账本为空时为0
func (b *Book) recomputeAverage() {
	b.RatingCount = len(b.Ratings)
	if len(b.Ratings) == 0 {
		b.AverageRating = 0
		return
	}
	var sum int
	for _, r := range b.Ratings {
		sum += r.Grade
	}
	b.AverageRating = float64(sum) / float64(len(b.Ratings))
}

// UpdateInfo 更新图书基本信息(领域行为)
// 空值表示不修改对应字段
func (b *Book) UpdateInfo(title, author, genre string, year int) {
	if title != "" {
		b.Title = title
	}
	if author != "" {
		b.Author = author
	}
	if genre != "" {
		b.Genre = genre
	}
	if year > 0 {
		b.Year = year
	}
	b.UpdatedAt = time.Now()
}

// SetCover 更新封面图片地址
func (b *Book) SetCover(coverURL string) {
	b.CoverURL = coverURL
	b.UpdatedAt = time.Now()
}

// IsOwnedBy 检查图书是否由指定用户创建
func (b *Book) IsOwnedBy(userID uint) bool {
	return b.OwnerID == userID
}
