package entity

// Integration 外部服务名称
type Integration string

const (
	IntegrationTranscription Integration = "transcription"
	IntegrationGeneration    Integration = "generation"
	IntegrationSynthesis     Integration = "synthesis"
	IntegrationDocument      Integration = "document"
)

// CallStatus 单次外部调用结果
//   - skipped: 未调用
//   - success: 调用成功且有内容
//   - degraded: 调用完成但内容为空或无法使用
//   - failed: 未能调用或传输失败
type CallStatus string

const (
	CallSkipped  CallStatus = "skipped"
	CallSuccess  CallStatus = "success"
	CallDegraded CallStatus = "degraded"
	CallFailed   CallStatus = "failed"
)

// CallStatuses 一轮对话内各外部服务的调用结果
type CallStatuses map[Integration]CallStatus

// Get 返回指定服务的状态，未记录视为 skipped
func (c CallStatuses) Get(i Integration) CallStatus {
	if s, ok := c[i]; ok {
		return s
	}
	return CallSkipped
}
