package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-pdf/fpdf"

	"github.com/hitoshi/travelplanner/internal/model"
)

const (
	// DocumentTitle は旅行ハンドブックの表題。
	DocumentTitle = "你的專屬 AI 旅遊手冊"

	userHeading      = "你問"
	assistantHeading = "AI 導遊建議"

	fontFamily = "handbook"
)

// ErrFontRequired はUTF-8フォントが指定されていないことを表す。
// 表題と見出しが中国語のため、コアフォントでは正しく出力できない。
var ErrFontRequired = errors.New("PDF_FONT_PATH にTrueTypeフォントを指定してください")

// PDFRenderer は会話履歴をA4の旅行ハンドブックPDFに変換する。
// フォントは起動時に一度だけ読み込み、リクエストごとに埋め込む。
type PDFRenderer struct {
	font []byte
}

// NewPDFRenderer はfontPathのTrueTypeフォントを読み込んでPDFRendererを生成する。
// 中国語のグリフを含むフォント（NotoSansTC、DroidSansFallbackなど）を指定する。
// OpenType(CFF)やTrueTypeコレクション(.ttc)は使えないため、ここで試し描画して検出する。
func NewPDFRenderer(fontPath string) (*PDFRenderer, error) {
	if fontPath == "" {
		return nil, ErrFontRequired
	}
	font, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("フォントの読み込みに失敗しました: %w", err)
	}
	if len(font) == 0 {
		return nil, fmt.Errorf("フォントファイルが空です: %s", fontPath)
	}

	r := &PDFRenderer{font: font}
	if _, err := r.build(nil); err != nil {
		return nil, fmt.Errorf("フォントを使用できません（%s）: %w", fontPath, err)
	}
	return r, nil
}

// Render は会話履歴をPDFにレンダリングする。
func (r *PDFRenderer) Render(turns []model.Turn) ([]byte, error) {
	pdf, err := r.build(turns)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDFの出力に失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) build(turns []model.Turn) (*fpdf.Fpdf, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 20, 18)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(DocumentTitle, true)
	pdf.AliasNbPages("")

	pdf.AddUTF8FontFromBytes(fontFamily, "", r.font)
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("フォントの登録に失敗しました: %w", err)
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("%d / {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(fontFamily, "", 22)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 12, DocumentTitle, "", "C", false)
	pdf.Ln(12)

	for _, turn := range turns {
		heading := assistantHeading
		if turn.Role == model.RoleUser {
			heading = userHeading
			pdf.SetTextColor(0, 0, 200)
		} else {
			pdf.SetTextColor(0, 0, 0)
		}
		pdf.SetFont(fontFamily, "", 13)
		pdf.MultiCell(0, 7, heading+"：", "", "L", false)
		pdf.SetFont(fontFamily, "", 11)
		pdf.MultiCell(0, 6, turn.Content, "", "L", false)
		pdf.Ln(5)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("PDFの生成に失敗しました: %w", err)
	}
	return pdf, nil
}
