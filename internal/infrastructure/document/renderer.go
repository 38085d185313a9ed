// Package document 提供批复函渲染与存储
package document

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
)

const (
	letterTitle  = "TATA CAPITAL - SANCTION LETTER"
	letterFont   = "Arial"
	lineWidth    = 200
	lineHeight   = 10
	dateLayout   = "02-01-2006"
	letterAuthor = "Tata Capital AI Team"
)

// Renderer 按固定版式渲染单页批复函
type Renderer struct{}

// NewRenderer 创建渲染器
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render 渲染批复函，页面内容不压缩，申请人与金额可在文件字节中直接检索
func (r *Renderer) Render(amount int64, name string, at time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(false)
	pdf.SetCreationDate(at)
	pdf.SetTitle(letterTitle, false)
	pdf.SetAuthor(letterAuthor, false)
	pdf.SetCreator("fincore-agent-api", false)
	pdf.AddPage()

	pdf.SetFont(letterFont, "B", 20)
	pdf.SetTextColor(10, 37, 64)
	pdf.CellFormat(lineWidth, lineHeight, letterTitle, "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont(letterFont, "", 12)
	pdf.SetTextColor(0, 0, 0)
	for _, line := range letterBody(amount, name, at) {
		pdf.CellFormat(lineWidth, lineHeight, line, "", 1, "L", false, 0, "")
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render sanction letter: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write sanction letter: %w", err)
	}
	return buf.Bytes(), nil
}

func letterBody(amount int64, name string, at time.Time) []string {
	return []string{
		"Date: " + at.Format(dateLayout),
		"Applicant: " + name,
		"",
		"Subject: In-Principle Sanction of Personal Loan",
		"",
		"Dear Customer,",
		"Based on your automated credit check and AI verification,",
		"we are pleased to approve a Personal Loan of:",
		"",
		fmt.Sprintf("   INR %d /-", amount),
		"",
		"Terms & Conditions:",
		"- Interest Rate: 10.99% p.a.",
		"- Tenure: 36 Months",
		"- Agent: FinCore AI Master Agent",
		"",
		"Sincerely,",
		letterAuthor,
	}
}
