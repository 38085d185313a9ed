package assistant

import (
	"encoding/json"
	"strings"

	"fincore-agent-api/internal/domain/entity"
	wfnode "fincore-agent-api/internal/workflow/node"
)

type agentReplyJSON struct {
	Text        string  `json:"text"`
	ActiveAgent string  `json:"active_agent"`
	UEBALog     *string `json:"ueba_log"`
}

// ParseAgentReply 解析模型输出。
// 去掉代码围栏后整段按 JSON 对象解码，不在文本中搜索对象；
// 失败时整段原文作为答复，agent 与审计日志保持默认值。
func ParseAgentReply(raw string) entity.AgentReply {
	obj := wfnode.StripCodeFences(raw)
	if !strings.HasPrefix(obj, "{") {
		return entity.DefaultReply(raw)
	}

	var parsed agentReplyJSON
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return entity.DefaultReply(raw)
	}

	uebaLog := entity.AuthorizedUEBALog
	if parsed.UEBALog != nil {
		uebaLog = *parsed.UEBALog
	}
	return entity.AgentReply{
		Text:        parsed.Text,
		ActiveAgent: entity.NormalizeAgent(parsed.ActiveAgent),
		UEBALog:     uebaLog,
		Variant:     entity.ReplyStructured,
	}
}
