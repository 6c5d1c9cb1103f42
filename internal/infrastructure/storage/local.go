package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // 注册GIF解码器
	"image/jpeg"
	_ "image/png" // 注册PNG解码器
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // 注册WebP解码器

	"github.com/xiebiao/grimoire/internal/domain/book"
	"github.com/xiebiao/grimoire/internal/infrastructure/config"
	apperrors "github.com/xiebiao/grimoire/pkg/errors"
)

// 上传图片大小上限(解码前检查,防止恶意大文件耗尽内存)
const maxUploadBytes = 10 << 20 // 10MB

// LocalAssetStore 本地磁盘封面存储
// 设计说明:
// 1. 实现domain/book/asset.go定义的AssetStore接口
// 2. 所有封面统一缩放到固定尺寸并重编码为JPEG,原始文件不保留:
//    既归一化了展示尺寸,也顺带消除了上传文件可能携带的恶意内容
// 3. 文件名取处理后内容的SHA-256前缀:同样的图片天然去重,
//    且文件名不可预测、不可枚举
// 接口实现检查
var _ book.AssetStore = (*LocalAssetStore)(nil)

type LocalAssetStore struct {
	dir     string
	baseURL string
	width   int
	height  int
	quality int
}

// NewLocalAssetStore 创建本地封面存储
// 返回具体类型:路由注册时需要调用Dir()挂载静态文件服务
func NewLocalAssetStore(cfg *config.Config) (*LocalAssetStore, error) {
	// 确保存储目录存在
	if err := os.MkdirAll(cfg.Asset.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建图片存储目录失败: %w", err)
	}

	return &LocalAssetStore{
		dir:     cfg.Asset.Dir,
		baseURL: strings.TrimRight(cfg.Asset.BaseURL, "/"),
		width:   cfg.Asset.CoverWidth,
		height:  cfg.Asset.CoverHeight,
		quality: cfg.Asset.JPEGQuality,
	}, nil
}

// Store 存储一张封面图片
// 处理流程:
// 1. 解码(支持JPEG/PNG/GIF,格式由图片内容识别,不信任文件扩展名)
// 2. 缩放到固定尺寸(CatmullRom插值,质量优先)
// 3. JPEG重编码后落盘,返回访问URL
func (s *LocalAssetStore) Store(ctx context.Context, r io.Reader) (string, error) {
	// 1. 读入并解码
	data, err := io.ReadAll(io.LimitReader(r, maxUploadBytes+1))
	if err != nil {
		return "", apperrors.Wrap(err, "读取上传图片失败")
	}
	if len(data) > maxUploadBytes {
		return "", apperrors.ErrInvalidImage
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		// 解码失败说明不是可识别的图片格式
		return "", apperrors.ErrInvalidImage
	}

	// 2. 缩放到固定尺寸
	dst := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	// 3. JPEG编码
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: s.quality}); err != nil {
		return "", apperrors.Wrap(err, "编码封面图片失败")
	}

	// 4. 内容寻址文件名 + 落盘
	sum := sha256.Sum256(buf.Bytes())
	filename := hex.EncodeToString(sum[:16]) + ".jpg"
	fullPath := filepath.Join(s.dir, filename)

	if err := os.WriteFile(fullPath, buf.Bytes(), 0o644); err != nil {
		return "", apperrors.Wrap(err, "保存封面图片失败")
	}

	return s.baseURL + "/" + filename, nil
}

// Remove 按URL删除已存储的图片
// 幂等:图片不存在时不报错(重复删除、历史数据缺失都是正常情况)
func (s *LocalAssetStore) Remove(ctx context.Context, coverURL string) error {
	if coverURL == "" {
		return nil
	}

	// 从URL提取文件名,拒绝路径穿越
	filename := path.Base(coverURL)
	if filename == "." || filename == "/" || strings.Contains(filename, "..") {
		return nil
	}

	fullPath := filepath.Join(s.dir, filename)
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.Wrap(err, "删除封面图片失败")
	}
	return nil
}

// Dir 图片落盘目录(供HTTP静态文件服务挂载)
func (s *LocalAssetStore) Dir() string {
	return s.dir
}
