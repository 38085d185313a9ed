package dto

import "fincore-agent-api/internal/application/assistant"

// ProcessAudioResponse /process_audio 响应，字段名与浏览器端约定一致
type ProcessAudioResponse struct {
	UserText    string  `json:"user_text"`
	AIText      string  `json:"ai_text"`
	AudioBase64 *string `json:"audio_base64"`
	ActiveAgent string  `json:"active_agent"`
	UEBALog     string  `json:"ueba_log"`
	PDFURL      *string `json:"pdf_url"`
}

// ToProcessAudioResponse 转换编排结果
func ToProcessAudioResponse(res *assistant.Result) *ProcessAudioResponse {
	if res == nil {
		return nil
	}
	return &ProcessAudioResponse{
		UserText:    res.UserText,
		AIText:      res.AIText,
		AudioBase64: res.AudioBase64,
		ActiveAgent: res.ActiveAgent.String(),
		UEBALog:     res.UEBALog,
		PDFURL:      res.PDFURL,
	}
}
