package document

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"ticket-service/internal/models"

	"github.com/go-pdf/fpdf"
)

const generatorName = "T&M Ticket Generator"

// MaxSnapshotPixels bounds width x height of a snapshot. It is checked from the
// PNG header before any pixel data is decoded.
const MaxSnapshotPixels = 48 << 20

const snapshotImage = "snapshot"

// Metadata is written to the PDF Info dictionary
type Metadata struct {
	Title    string
	Subject  string
	Author   string
	Keywords string
	Creator  string
}

// TicketMetadata builds the Info dictionary for a ticket document
func TicketMetadata(projectName, ticketNumber string) Metadata {
	if projectName == "" {
		projectName = "Project"
	}
	return Metadata{
		Title:    "T&M Ticket - " + projectName,
		Subject:  "T&M Ticket #" + ticketNumber,
		Author:   generatorName,
		Keywords: "construction, time and materials, change order",
		Creator:  generatorName,
	}
}

// Filename returns the download name for a ticket document
func Filename(projectName, ticketNumber string) string {
	clean := strings.NewReplacer("/", "-", "\\", "-", "\x00", "")
	return clean.Replace(fmt.Sprintf("T&M_Ticket_%s_%s.pdf", projectName, ticketNumber))
}

// Document is an assembled PDF
type Document struct {
	Filename string
	Data     []byte
	Pages    int
}

// DataURI encodes the document the way browsers hand PDFs around
func (d Document) DataURI() string {
	return "data:application/pdf;filename=" + d.Filename + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

// Assembler turns a PNG snapshot into a paginated PDF
type Assembler struct {
	paginator *Paginator
	now       func() time.Time
	compress  bool
}

// NewAssembler creates an assembler drawing pages laid out by paginator
func NewAssembler(paginator *Paginator) *Assembler {
	return &Assembler{paginator: paginator, now: time.Now, compress: true}
}

// Paginator returns the paginator used for layout
func (a *Assembler) Paginator() *Paginator {
	return a.paginator
}

// Assemble paginates snapshot and writes the PDF.
// scale is the device pixel ratio the snapshot was rasterized at.
func (a *Assembler) Assemble(snapshot []byte, scale float64, meta Metadata, filename string) (Document, Layout, error) {
	if scale <= 0 {
		return Document{}, Layout{}, models.Invalid("scale", "scale %g must be positive", scale)
	}

	cfg, err := png.DecodeConfig(bytes.NewReader(snapshot))
	if err != nil {
		return Document{}, Layout{}, models.Invalid("snapshot", "snapshot is not a valid PNG: %v", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSnapshotPixels {
		return Document{}, Layout{}, models.Invalid("snapshot", "snapshot is %dx%d pixels, above the %d pixel limit",
			cfg.Width, cfg.Height, MaxSnapshotPixels)
	}

	layout, err := a.paginator.Paginate(float64(cfg.Width)/scale, float64(cfg.Height)/scale)
	if err != nil {
		return Document{}, Layout{}, err
	}

	data, err := a.render(snapshot, layout, meta)
	if err != nil {
		// fpdf reads 8-bit non-interlaced PNGs only; anything else is re-encoded once
		normalized, nerr := normalizePNG(snapshot)
		if nerr != nil {
			return Document{}, Layout{}, models.Invalid("snapshot", "snapshot is not a valid PNG: %v", nerr)
		}
		if data, err = a.render(normalized, layout, meta); err != nil {
			return Document{}, Layout{}, fmt.Errorf("failed to render document: %w", err)
		}
	}

	return Document{Filename: filename, Data: data, Pages: layout.PageCount()}, layout, nil
}

// render draws the full image on every page at its placement offset, with a
// "Page i of n" footer
func (a *Assembler) render(snapshot []byte, layout Layout, meta Metadata) ([]byte, error) {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: layout.Page.Width, Ht: layout.Page.Height},
	})
	pdf.SetCompression(a.compress)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(meta.Title, !isASCII(meta.Title))
	pdf.SetSubject(meta.Subject, !isASCII(meta.Subject))
	pdf.SetAuthor(meta.Author, !isASCII(meta.Author))
	pdf.SetKeywords(meta.Keywords, !isASCII(meta.Keywords))
	pdf.SetCreator(meta.Creator, !isASCII(meta.Creator))
	pdf.SetProducer(generatorName, false)
	pdf.SetCreationDate(a.now())

	pageCount := layout.PageCount()
	pdf.SetFooterFunc(func() {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.Text(layout.Page.Width-30, layout.Page.Height-10, fmt.Sprintf("Page %d of %d", pdf.PageNo(), pageCount))
	})

	opts := fpdf.ImageOptions{ImageType: "PNG", AllowNegativePosition: true}
	pdf.RegisterImageOptionsReader(snapshotImage, opts, bytes.NewReader(snapshot))
	if err := pdf.Error(); err != nil {
		return nil, err
	}

	for _, placement := range layout.Placements {
		pdf.AddPage()
		pdf.ImageOptions(snapshotImage, 0, placement.OffsetY, layout.ImageWidth, layout.ImageHeight, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalizePNG re-encodes snapshot as 8-bit non-interlaced NRGBA
func normalizePNG(snapshot []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(snapshot))
	if err != nil {
		return nil, err
	}
	flat := image.NewNRGBA(img.Bounds())
	draw.Draw(flat, flat.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, flat); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
