package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/hitoshi/gakuen/internal/model"
)

// 時間割グリッドの表示範囲。月曜から土曜、1〜8時限。
var pdfDays = []struct {
	dayOfWeek int
	label     string
}{
	{1, "Mon"}, {2, "Tue"}, {3, "Wed"}, {4, "Thu"}, {5, "Fri"}, {6, "Sat"},
}

const pdfMaxPeriod = 8

// PDFWriter は時間割のPDF出力を提供する。
// fontPathにTrueTypeフォントが指定されている場合はUTF-8テキストを埋め込み、
// 未指定の場合はコアフォント（ASCIIのみ）で描画する。
type PDFWriter struct {
	fontPath string
}

// NewPDFWriter はPDFWriterを生成する。
func NewPDFWriter(fontPath string) *PDFWriter {
	return &PDFWriter{fontPath: fontPath}
}

// WriteTimetablePDF は指定クラスの時間割を曜日×時限のグリッドでPDF出力する。
func (p *PDFWriter) WriteTimetablePDF(w io.Writer, class *model.Class, entries []*model.TimetableEntry) error {
	pdf := gofpdf.New("L", "mm", "A4", "")

	fontFamily := "Helvetica"
	if p.fontPath != "" {
		fontFamily = "custom"
		pdf.AddUTF8Font(fontFamily, "", p.fontPath)
	}

	pdf.AddPage()

	// タイトル
	pdf.SetFont(fontFamily, "", 16)
	pdf.CellFormat(0, 12, fmt.Sprintf("Timetable: %s (Grade %d)", class.Name, class.Grade),
		"", 1, "C", false, 0, "")
	pdf.Ln(4)

	// (day, period) -> subject の索引を構築
	grid := make(map[[2]int]string, len(entries))
	for _, e := range entries {
		grid[[2]int{e.DayOfWeek, e.Period}] = e.Subject
	}

	const (
		headerCol = 20.0
		colWidth  = 42.0
		rowHeight = 12.0
	)

	// ヘッダー行
	pdf.SetFont(fontFamily, "", 11)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(headerCol, rowHeight, "", "1", 0, "C", true, 0, "")
	for _, d := range pdfDays {
		pdf.CellFormat(colWidth, rowHeight, d.label, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	// 時限ごとの行
	pdf.SetFont(fontFamily, "", 10)
	for period := 1; period <= pdfMaxPeriod; period++ {
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(headerCol, rowHeight, fmt.Sprintf("%d", period), "1", 0, "C", true, 0, "")
		for _, d := range pdfDays {
			pdf.CellFormat(colWidth, rowHeight, grid[[2]int{d.dayOfWeek, period}],
				"1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render timetable pdf: %w", err)
	}
	return nil
}
