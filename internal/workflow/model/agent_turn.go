// Package model 定义工作流输入输出
package model

// AgentTurnInput 主 Agent 单轮调用输入
type AgentTurnInput struct {
	Transcript   string
	CustomerName string
	CreditScore  int

	// Image 可选，以多模态内容附在用户消息后
	Image     []byte
	ImageMIME string

	// Provider 为空时使用默认提供商
	Provider string
	// JSONResponse 请求上游以 JSON 对象返回，不支持时自动回退
	JSONResponse bool
}

// HasImage 是否附带图片
func (in *AgentTurnInput) HasImage() bool {
	return in != nil && len(in.Image) > 0
}
