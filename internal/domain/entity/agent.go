package entity

import "strings"

// AgentLabel 子 Agent 标签
type AgentLabel string

const (
	AgentMaster AgentLabel = "agent-master"
	AgentSales  AgentLabel = "agent-sales"
	AgentVerify AgentLabel = "agent-verify"
	AgentRisk   AgentLabel = "agent-risk"
	AgentDoc    AgentLabel = "agent-doc"
)

// KnownAgents 主 Agent 可路由到的全部标签
var KnownAgents = []AgentLabel{AgentMaster, AgentSales, AgentVerify, AgentRisk, AgentDoc}

// IsKnown 判断标签是否在允许列表中
func (a AgentLabel) IsKnown() bool {
	for _, k := range KnownAgents {
		if a == k {
			return true
		}
	}
	return false
}

func (a AgentLabel) String() string {
	return string(a)
}

// NormalizeAgent 去除首尾空白，空值回落为 agent-master
func NormalizeAgent(raw string) AgentLabel {
	s := strings.TrimSpace(raw)
	if s == "" {
		return AgentMaster
	}
	return AgentLabel(s)
}

const (
	// DefaultUEBALog 未能解析模型输出时的行为审计日志
	DefaultUEBALog = "UEBA: Monitoring session..."
	// AuthorizedUEBALog 结构化输出缺少 ueba_log 时的取值
	AuthorizedUEBALog = "UEBA: Action authorized."
)

// ReplyVariant 模型答复的解析结果类型
type ReplyVariant string

const (
	ReplyStructured ReplyVariant = "structured"
	ReplyRawText    ReplyVariant = "raw_text"
)

// AgentReply 主 Agent 的单轮答复
type AgentReply struct {
	Text        string       `json:"text"`
	ActiveAgent AgentLabel   `json:"active_agent"`
	UEBALog     string       `json:"ueba_log"`
	Variant     ReplyVariant `json:"-"`
}

// DefaultReply 未调用或未能解析模型时的答复
func DefaultReply(text string) AgentReply {
	return AgentReply{
		Text:        text,
		ActiveAgent: AgentMaster,
		UEBALog:     DefaultUEBALog,
		Variant:     ReplyRawText,
	}
}
