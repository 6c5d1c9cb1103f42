package book

import (
	"context"
	"io"
)

// AssetStore 封面图片存储接口(外部依赖的能力抽象)
// 设计说明:
// 1. 由domain层定义接口,infrastructure层实现(本地磁盘/对象存储均可)
// 2. Store接收原始图片字节,完成格式归一化(固定尺寸缩放+压缩编码)后落盘,
//    返回可供客户端访问的URL;归一化细节对调用方不透明
// 3. Remove按URL释放资源,图书删除/换封面时调用
type AssetStore interface {
	// Store 存储一张封面图片,返回访问URL
	Store(ctx context.Context, r io.Reader) (string, error)

	// Remove 按URL删除已存储的图片
	// 删除不存在的图片不视为错误(幂等)
	Remove(ctx context.Context, coverURL string) error
}
