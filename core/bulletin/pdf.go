package bulletin

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/simonmuehling/educafric-app-sub019/core"
)

const (
	margin     = 15.0
	tableWidth = 180.0 // A4 width minus margins
	qrSize     = 28.0
)

type Options struct {
	Creator       string
	Secret        string
	VerifyBaseURL string
}

// Generate lays out d with the configuration of its detected type and writes the PDF to w.
// The output only depends on d and opts: the issue date comes from d.IssuedAt.
func Generate(w io.Writer, d Data, opts Options) (Layout, error) {
	cfg, err := GetBulletinConfig(d.Type())
	if err != nil {
		return Layout{}, err
	}
	if err = d.CheckGrades(cfg); err != nil {
		return Layout{}, err
	}
	if d.IssuedAt.IsZero() {
		d.IssuedAt = core.NowUTC()
	}

	l := BuildLayout(d, cfg)
	l.VerificationCode = VerificationCode(d, opts.Secret)
	l.VerificationURL = VerificationURL(opts.VerifyBaseURL, d.ID, l.VerificationCode)
	if err = Render(w, l, opts.Creator); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Render draws l as a PDF document.
func Render(w io.Writer, l Layout, creator string) error {
	pdf := fpdf.New("P", "mm", l.Format, "")
	pdf.SetCreationDate(l.IssuedAt)
	pdf.SetModificationDate(l.IssuedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(l.Title, true)
	pdf.SetAuthor(l.SchoolName, true)
	if creator != "" {
		pdf.SetCreator(creator, true)
	}
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("%s - %d/{nb}", l.VerificationCode, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// title
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(l.Title), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// header
	pdf.SetFont("Helvetica", "", 10)
	for _, f := range l.Header {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, tr(f.Label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(f.Value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	// grades table
	pdf.SetFillColor(230, 230, 230)
	pdf.SetFont("Helvetica", "B", 9)
	for i, col := range l.Columns {
		pdf.CellFormat(l.ColumnWidths[i], 7, tr(col), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	for _, row := range l.Rows {
		if row.Group != "" {
			pdf.SetFont("Helvetica", "B", 9)
			pdf.CellFormat(tableWidth, 6, tr(row.Group), "1", 1, "L", true, 0, "")
			continue
		}
		pdf.SetFont("Helvetica", "", 9)
		for i, cell := range row.Cells {
			align := "C"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(l.ColumnWidths[i], 6, fit(pdf, tr(cell), l.ColumnWidths[i]-2), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	// summary
	for _, f := range l.Summary {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 6, tr(f.Label), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(f.Value), "", 1, "L", false, 0, "")
	}

	// sections
	for _, sec := range l.Sections {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 6, tr(sec.Title), "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, line := range sec.Lines {
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
	}

	// footer & verification block
	pdf.Ln(4)
	y := pdf.GetY()
	pdf.SetFont("Helvetica", "", 9)
	for _, f := range l.Footer {
		pdf.CellFormat(0, 5, tr(f.Label+": "+f.Value), "", 1, "L", false, 0, "")
	}
	if l.VerificationURL != "" {
		png, err := qrcode.Encode(l.VerificationURL, qrcode.Medium, 256)
		if err != nil {
			return errors.Wrap(err, "encoding verification QR code")
		}
		pdf.RegisterImageOptionsReader("verification-qr", fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(png))
		pageW, _ := pdf.GetPageSize()
		pdf.ImageOptions("verification-qr", pageW-margin-qrSize, y, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
		pdf.SetXY(pageW-margin-qrSize-50, y+qrSize-5)
		pdf.CellFormat(48, 5, l.VerificationCode, "", 0, "R", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering bulletin")
	}
	return nil
}

// fit cuts an already translated string so that it holds in width.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > width {
		s = s[:len(s)-1]
	}
	return s + "..."
}
