package handler

import (
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	homePage  = "homepage.html"
	loginPage = "login.html"
)

// PageHandler 静态页面处理器
type PageHandler struct {
	pages map[string][]byte
}

// NewPageHandler 从文件系统载入页面，启动时缺页即报错
func NewPageHandler(fsys fs.FS) (*PageHandler, error) {
	h := &PageHandler{pages: make(map[string][]byte, 2)}
	for _, name := range []string{homePage, loginPage} {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("load page %s: %w", name, err)
		}
		h.pages[name] = data
	}
	return h, nil
}

// Home 首页
func (h *PageHandler) Home(c *gin.Context) {
	h.serve(c, homePage)
}

// Login 登录页
func (h *PageHandler) Login(c *gin.Context) {
	h.serve(c, loginPage)
}

func (h *PageHandler) serve(c *gin.Context, name string) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", h.pages[name])
}
