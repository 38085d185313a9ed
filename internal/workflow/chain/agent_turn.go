// Package chain 提供基于 Eino compose 的 LLM 调用链
package chain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "fincore-agent-api/internal/domain/service"
	wfmodel "fincore-agent-api/internal/workflow/model"
	wfnode "fincore-agent-api/internal/workflow/node"
	workflowport "fincore-agent-api/internal/workflow/port"
	workflowprompt "fincore-agent-api/internal/workflow/prompt"
	"fincore-agent-api/pkg/logger"
)

const defaultImageMIME = "image/jpeg"

var defaultPromptRegistry = workflowprompt.NewRegistry()

// AgentTurnChain 主 Agent 单轮调用：模板 -> 多模态消息 -> 模型
type AgentTurnChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.AgentTurnInput, *schema.Message]
	chainErr  error
}

func NewAgentTurnChain(factory workflowport.ChatModelFactory) *AgentTurnChain {
	return &AgentTurnChain{factory: factory}
}

// Invoke 执行一次调用，返回模型原始文本
func (c *AgentTurnChain) Invoke(ctx context.Context, in *wfmodel.AgentTurnInput) (string, error) {
	if c == nil || c.factory == nil {
		return "", fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return "", fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return "", err
	}
	out, err := chain.Invoke(ctx, in)
	if err != nil {
		return "", err
	}
	return out.Content, nil
}

type agentTurnState struct {
	In       *wfmodel.AgentTurnInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *AgentTurnChain) getChain() (compose.Runnable[*wfmodel.AgentTurnInput, *schema.Message], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *AgentTurnChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.AgentTurnInput, *schema.Message], error) {
	chain := compose.NewChain[*wfmodel.AgentTurnInput, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.AgentTurnInput) (*agentTurnState, error) {
			msgs, err := formatAgentTurnMessages(ctx, in)
			if err != nil {
				return nil, err
			}
			return &agentTurnState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("agent_turn.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *agentTurnState) (*agentTurnState, error) {
			if st.In.HasImage() {
				attachImage(st.Messages, st.In.Image, st.In.ImageMIME)
			}
			return st, nil
		}),
		compose.WithNodeName("agent_turn.attach_image"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *agentTurnState) (*schema.Message, error) {
			provider, modelName := c.factory.Describe(strings.TrimSpace(st.In.Provider))
			ctx = llmctx.WithLLMCall(ctx, llmctx.WorkflowAgentTurn, provider, modelName)

			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildAgentTurnOptions(st.In.JSONResponse)...)
			if err != nil && st.In.JSONResponse && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json response format not supported, fallback to prompt-only",
					"provider", provider,
					"model", modelName,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildAgentTurnOptions(false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}

			logger.Debug(ctx, "llm reply received",
				"provider", provider,
				"preview", wfnode.TruncateByRunes(outMsg.Content, 50),
			)
			return outMsg, nil
		}),
		compose.WithNodeName("agent_turn.llm"),
	)

	return chain.Compile(ctx)
}

func formatAgentTurnMessages(ctx context.Context, in *wfmodel.AgentTurnInput) ([]*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptMasterAgentV1)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, map[string]any{
		"transcript":    in.Transcript,
		"customer_name": in.CustomerName,
		"credit_score":  in.CreditScore,
	})
}

// attachImage 将最后一条用户消息改写为文本 + 图片的多模态内容
func attachImage(msgs []*schema.Message, image []byte, mimeType string) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i] == nil || msgs[i].Role != schema.User {
			continue
		}
		msgs[i] = &schema.Message{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{Type: schema.ChatMessagePartTypeText, Text: msgs[i].Content},
				{Type: schema.ChatMessagePartTypeImageURL, ImageURL: imagePart(image, mimeType)},
			},
		}
		return
	}
}

func imagePart(image []byte, mimeType string) *schema.ChatMessageImageURL {
	mt := strings.TrimSpace(mimeType)
	if !strings.HasPrefix(mt, "image/") {
		mt = defaultImageMIME
	}
	return &schema.ChatMessageImageURL{
		URL:      "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(image),
		MIMEType: mt,
	}
}

func buildAgentTurnOptions(jsonResponse bool) []model.Option {
	if !jsonResponse {
		return nil
	}
	return []model.Option{
		openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{"type": "json_object"},
		}),
	}
}
