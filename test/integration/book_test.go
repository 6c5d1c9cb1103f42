package integration

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 教学说明：图书模块集成测试
//
// 测试场景覆盖：
// 1. 图书创建（multipart封面上传，需要认证）
// 2. 图书详情/列表查询（公开接口）
// 3. 分页、搜索功能
// 4. 所有权校验（只有创建者能修改/删除）

// TestBookCreate 测试创建图书功能
func TestBookCreate(t *testing.T) {
	SkipIfServerDown(t)

	_, token := RegisterTestUser(t, "book_creator")

	t.Run("正常创建图书", func(t *testing.T) {
		fields := map[string]string{
			"title":  "《Go语言高级编程》",
			"author": "柴树杉",
			"genre":  "编程",
			"year":   "2019",
		}

		resp := PostMultipart(t, "POST", BaseURL+"/books", fields, GenerateTestCover(t), token)

		assert.Equal(t, 0, resp.Code, "创建应该成功: %s", resp.Message)

		var data BookData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err, "解析响应数据失败")

		assert.NotZero(t, data.ID, "图书ID应该大于0")
		assert.Equal(t, "《Go语言高级编程》", data.Title, "标题应该一致")
		assert.NotEmpty(t, data.CoverURL, "应该返回封面URL")
		assert.Zero(t, data.RatingCount, "新书评分账本应为空")
		assert.Zero(t, data.AverageRating, "新书平均分应为0")

		t.Logf("✓ 创建成功，图书ID: %d, 封面: %s", data.ID, data.CoverURL)
	})

	t.Run("未登录不能创建", func(t *testing.T) {
		fields := map[string]string{
			"title":  "《测试图书》",
			"author": "测试作者",
			"genre":  "测试",
			"year":   "2024",
		}

		resp := PostMultipart(t, "POST", BaseURL+"/books", fields, GenerateTestCover(t), "")

		assert.NotEqual(t, 0, resp.Code, "未登录应该失败")

		t.Logf("✓ 未登录正确被拒绝: %s", resp.Message)
	})

	t.Run("缺少必填字段应失败", func(t *testing.T) {
		fields := map[string]string{
			// 缺title
			"author": "测试作者",
			"genre":  "测试",
			"year":   "2024",
		}

		resp := PostMultipart(t, "POST", BaseURL+"/books", fields, GenerateTestCover(t), token)

		assert.NotEqual(t, 0, resp.Code, "缺少必填字段应该失败")

		t.Logf("✓ 缺少必填字段正确返回错误: %s", resp.Message)
	})

	t.Run("非图片封面应失败", func(t *testing.T) {
		fields := map[string]string{
			"title":  "《测试图书》",
			"author": "测试作者",
			"genre":  "测试",
			"year":   "2024",
		}

		resp := PostMultipart(t, "POST", BaseURL+"/books", fields, []byte("not-an-image"), token)

		assert.NotEqual(t, 0, resp.Code, "非图片封面应该失败")

		t.Logf("✓ 非图片封面正确返回错误: %s", resp.Message)
	})
}

// TestBookGet 测试图书详情查询
func TestBookGet(t *testing.T) {
	SkipIfServerDown(t)

	_, token := RegisterTestUser(t, "book_getter")
	bookID := CreateTestBook(t, token, "《详情测试图书》")

	t.Run("查询存在的图书", func(t *testing.T) {
		// 详情是公开接口，不需要Token
		resp := GetJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), "")

		assert.Equal(t, 0, resp.Code, "查询应该成功: %s", resp.Message)

		var data BookData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err, "解析响应数据失败")

		assert.Equal(t, bookID, data.ID)
		assert.Equal(t, "《详情测试图书》", data.Title)

		t.Logf("✓ 查询成功: %s", data.Title)
	})

	t.Run("查询不存在的图书", func(t *testing.T) {
		resp := GetJSON(t, BaseURL+"/books/99999999", "")

		assert.NotEqual(t, 0, resp.Code, "查询不存在的图书应该失败")

		t.Logf("✓ 不存在的图书正确返回错误: %s", resp.Message)
	})

	t.Run("非法ID应失败", func(t *testing.T) {
		resp := GetJSON(t, BaseURL+"/books/abc", "")

		assert.NotEqual(t, 0, resp.Code, "非法ID应该失败")

		t.Logf("✓ 非法ID正确返回错误: %s", resp.Message)
	})
}

// TestBookList 测试图书列表查询
func TestBookList(t *testing.T) {
	SkipIfServerDown(t)

	_, token := RegisterTestUser(t, "book_lister")
	// 准备3本书
	for i := 1; i <= 3; i++ {
		CreateTestBook(t, token, fmt.Sprintf("《列表测试图书%d》", i))
	}

	t.Run("分页查询", func(t *testing.T) {
		resp := GetJSON(t, BaseURL+"/books?page=1&page_size=2", "")

		assert.Equal(t, 0, resp.Code, "查询应该成功: %s", resp.Message)

		var data BookListData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err, "解析响应数据失败")

		assert.LessOrEqual(t, len(data.Books), 2, "每页最多2本")
		assert.GreaterOrEqual(t, data.Total, int64(3), "总数至少3本")

		t.Logf("✓ 分页查询成功，总数: %d", data.Total)
	})

	t.Run("关键词搜索", func(t *testing.T) {
		resp := GetJSON(t, BaseURL+"/books?keyword=列表测试图书1", "")

		assert.Equal(t, 0, resp.Code, "搜索应该成功: %s", resp.Message)

		var data BookListData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err, "解析响应数据失败")

		assert.GreaterOrEqual(t, len(data.Books), 1, "应该搜到至少1本")

		t.Logf("✓ 关键词搜索成功，命中%d本", len(data.Books))
	})
}

// TestBookUpdateAndDelete 测试图书更新与删除的所有权校验
func TestBookUpdateAndDelete(t *testing.T) {
	SkipIfServerDown(t)

	_, ownerToken := RegisterTestUser(t, "book_owner")
	_, otherToken := RegisterTestUser(t, "book_other")
	bookID := CreateTestBook(t, ownerToken, "《所有权测试图书》")

	t.Run("非创建者不能修改", func(t *testing.T) {
		fields := map[string]string{"title": "《恶意修改》"}
		resp := PostMultipart(t, "PUT", fmt.Sprintf("%s/books/%d", BaseURL, bookID), fields, nil, otherToken)

		assert.NotEqual(t, 0, resp.Code, "非创建者修改应该失败")

		t.Logf("✓ 非创建者修改正确被拒绝: %s", resp.Message)
	})

	t.Run("创建者可以修改", func(t *testing.T) {
		fields := map[string]string{"title": "《修改后的标题》"}
		resp := PostMultipart(t, "PUT", fmt.Sprintf("%s/books/%d", BaseURL, bookID), fields, nil, ownerToken)

		assert.Equal(t, 0, resp.Code, "创建者修改应该成功: %s", resp.Message)

		var data BookData
		err := json.Unmarshal(resp.Data, &data)
		require.NoError(t, err, "解析响应数据失败")
		assert.Equal(t, "《修改后的标题》", data.Title)

		t.Log("✓ 创建者修改成功")
	})

	t.Run("非创建者不能删除", func(t *testing.T) {
		resp := DeleteJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), otherToken)

		assert.NotEqual(t, 0, resp.Code, "非创建者删除应该失败")

		t.Logf("✓ 非创建者删除正确被拒绝: %s", resp.Message)
	})

	t.Run("创建者可以删除", func(t *testing.T) {
		resp := DeleteJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), ownerToken)

		assert.Equal(t, 0, resp.Code, "创建者删除应该成功: %s", resp.Message)

		// 删除后查询应失败
		getResp := GetJSON(t, fmt.Sprintf("%s/books/%d", BaseURL, bookID), "")
		assert.NotEqual(t, 0, getResp.Code, "删除后查询应该失败")

		t.Log("✓ 创建者删除成功，记录已不可见")
	})
}
