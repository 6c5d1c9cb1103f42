package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 教学说明：测试辅助工具
// 这个文件包含集成测试的通用辅助函数，遵循DRY原则（Don't Repeat Yourself）
// 将重复的代码（HTTP请求、JSON解析、multipart构造）封装成可复用的函数

const (
	// BaseURL API基础URL
	BaseURL = "http://localhost:8080/api/v1"
	// PingURL 健康检查URL
	PingURL = "http://localhost:8080/ping"
	// Timeout HTTP请求超时时间
	Timeout = 10 * time.Second
)

// Response 统一响应结构
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RegisterData 注册响应数据
type RegisterData struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// LoginData 登录响应数据
type LoginData struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RatingData 评分明细
type RatingData struct {
	UserID uint `json:"user_id"`
	Grade  int  `json:"grade"`
}

// BookData 图书详情响应数据
type BookData struct {
	ID            uint         `json:"id"`
	Title         string       `json:"title"`
	Author        string       `json:"author"`
	Genre         string       `json:"genre"`
	Year          int          `json:"year"`
	CoverURL      string       `json:"cover_url"`
	OwnerID       uint         `json:"owner_id"`
	Ratings       []RatingData `json:"ratings"`
	AverageRating float64      `json:"average_rating"`
	RatingCount   int          `json:"rating_count"`
}

// BookItem 图书摘要（列表/排行视图）
type BookItem struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	Author        string  `json:"author"`
	Genre         string  `json:"genre"`
	Year          int     `json:"year"`
	CoverURL      string  `json:"cover_url"`
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

// BookListData 图书列表响应数据
type BookListData struct {
	Books []BookItem `json:"list"`
	Total int64      `json:"total"`
}

// TopRatedData 排行榜响应数据
type TopRatedData struct {
	Books []BookItem `json:"list"`
}

// SkipIfServerDown 服务未启动时跳过集成测试
//
// 教学说明：
// 集成测试依赖运行中的API服务，在CI或本地未起服务时
// 跳过而不是失败，保持单元测试流水线绿色
func SkipIfServerDown(t *testing.T) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(PingURL)
	if err != nil {
		t.Skipf("API服务未启动，跳过集成测试: %v", err)
	}
	resp.Body.Close()
}

// PostJSON 发送POST请求并解析JSON响应
//
// 教学说明：
// - 使用*testing.T参数，可以在失败时立即终止测试
// - 使用require包进行断言，失败会立即停止（不继续执行）
// - 返回*Response而非error，简化调用方代码
func PostJSON(t *testing.T, url string, data interface{}, token string) *Response {
	jsonData, err := json.Marshal(data)
	require.NoError(t, err, "JSON序列化失败")

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	require.NoError(t, err, "创建HTTP请求失败")

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

// GetJSON 发送GET请求并解析JSON响应
func GetJSON(t *testing.T, url string, token string) *Response {
	req, err := http.NewRequest("GET", url, nil)
	require.NoError(t, err, "创建HTTP请求失败")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

// PostMultipart 发送multipart/form-data请求（图书创建/更新用）
//
// 教学说明：
// 图书接口用multipart承载封面图片+文字字段，
// cover为nil时只提交文字字段
func PostMultipart(t *testing.T, method, url string, fields map[string]string, cover []byte, token string) *Response {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for key, value := range fields {
		require.NoError(t, w.WriteField(key, value), "写入表单字段失败")
	}

	if cover != nil {
		part, err := w.CreateFormFile("cover", "cover.png")
		require.NoError(t, err, "创建文件字段失败")
		_, err = part.Write(cover)
		require.NoError(t, err, "写入封面数据失败")
	}

	require.NoError(t, w.Close(), "关闭multipart writer失败")

	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err, "创建HTTP请求失败")

	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

// DeleteJSON 发送DELETE请求并解析JSON响应
func DeleteJSON(t *testing.T, url string, token string) *Response {
	req, err := http.NewRequest("DELETE", url, nil)
	require.NoError(t, err, "创建HTTP请求失败")

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

// doRequest 执行请求并解析统一响应结构
func doRequest(t *testing.T, req *http.Request) *Response {
	client := &http.Client{Timeout: Timeout}
	resp, err := client.Do(req)
	require.NoError(t, err, "发送HTTP请求失败")
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "读取响应体失败")

	var result Response
	err = json.Unmarshal(body, &result)
	require.NoError(t, err, "解析JSON响应失败: %s", string(body))

	return &result
}

// GenerateTestEmail 生成唯一的测试邮箱
//
// 教学说明：
// 使用纳秒时间戳确保邮箱唯一性，避免测试重复运行时邮箱冲突
func GenerateTestEmail(prefix string) string {
	return fmt.Sprintf("%s_%d@test.com", prefix, time.Now().UnixNano())
}

// GenerateTestCover 生成一张内存PNG封面图片
//
// 教学说明：
// 封面上传接口按内容识别格式，测试必须提交真实的图片字节,
// 随便写几个字节会被归一化流程拒绝
func GenerateTestCover(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 300, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 300; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "生成测试封面失败")
	return buf.Bytes()
}

// RegisterTestUser 注册测试用户并返回Token
//
// 教学说明：
// 这是一个"高阶"辅助函数，封装了注册+登录的完整流程
// 简化了测试代码，让测试更关注业务逻辑而非基础设施
func RegisterTestUser(t *testing.T, nickname string) (email string, token string) {
	// 1. 注册
	email = GenerateTestEmail(nickname)
	registerReq := map[string]string{
		"email":    email,
		"password": "Test1234",
		"nickname": nickname,
	}

	registerResp := PostJSON(t, BaseURL+"/users/register", registerReq, "")
	require.Equal(t, 0, registerResp.Code, "注册失败: %s", registerResp.Message)

	// 2. 登录
	loginReq := map[string]string{
		"email":    email,
		"password": "Test1234",
	}

	loginResp := PostJSON(t, BaseURL+"/users/login", loginReq, "")
	require.Equal(t, 0, loginResp.Code, "登录失败: %s", loginResp.Message)

	var loginData LoginData
	err := json.Unmarshal(loginResp.Data, &loginData)
	require.NoError(t, err, "解析登录响应失败")

	return email, loginData.AccessToken
}

// CreateTestBook 创建测试图书并返回图书ID
//
// 教学说明：
// 封装了图书创建流程（含封面上传），返回bookID供后续测试使用
func CreateTestBook(t *testing.T, token string, title string) uint {
	fields := map[string]string{
		"title":  title,
		"author": "集成测试作者",
		"genre":  "测试分类",
		"year":   "2024",
	}

	resp := PostMultipart(t, "POST", BaseURL+"/books", fields, GenerateTestCover(t), token)
	require.Equal(t, 0, resp.Code, "创建图书失败: %s", resp.Message)

	var bookData BookData
	err := json.Unmarshal(resp.Data, &bookData)
	require.NoError(t, err, "解析图书响应失败")

	return bookData.ID
}
