// Package pdf lays a captured raster onto a single A4-wide PDF page whose
// height follows the raster's aspect ratio.
package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"io"
	"log"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/jonathan/portfolio-core/internal/capture"
)

// A4WidthMM is the fixed page width.
const A4WidthMM = 210.0

// DefaultJPEGQuality is the quality the raster is re-encoded at.
const DefaultJPEGQuality = 95

const imageName = "capture"

// Assembler builds PDF documents from rasters.
type Assembler struct {
	PageWidthMM float64
	JPEGQuality int
	Compress    bool
	Title       string
	Author      string
	// Now stamps the document metadata; nil uses time.Now.
	Now     func() time.Time
	Verbose bool
}

// NewAssembler returns an assembler with A4 width, quality 95 and stream
// compression on.
func NewAssembler() *Assembler {
	return &Assembler{
		PageWidthMM: A4WidthMM,
		JPEGQuality: DefaultJPEGQuality,
		Compress:    true,
	}
}

// Document is an assembled PDF.
type Document struct {
	data     []byte
	widthMM  float64
	heightMM float64
}

// Bytes returns the encoded PDF.
func (d *Document) Bytes() []byte {
	return d.data
}

// PageSize returns the page width and height in millimetres.
func (d *Document) PageSize() (width, height float64) {
	return d.widthMM, d.heightMM
}

// WriteTo implements io.WriterTo.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(d.data)
	return int64(n), err
}

// Assemble places raster at (0,0) on a single page filling its width.
func (a *Assembler) Assemble(raster *capture.Raster) (*Document, error) {
	if raster == nil || raster.Width <= 0 || raster.Height <= 0 {
		return nil, &AssemblyError{Message: "raster is empty"}
	}

	pageWidth := a.PageWidthMM
	if pageWidth <= 0 {
		pageWidth = A4WidthMM
	}
	pageHeight := pageWidth * float64(raster.Height) / float64(raster.Width)

	img, err := a.encodeJPEG(raster)
	if err != nil {
		return nil, err
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: pageWidth, Ht: pageHeight},
	})
	pdf.SetCompression(a.Compress)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if a.Title != "" {
		pdf.SetTitle(a.Title, true)
	}
	if a.Author != "" {
		pdf.SetAuthor(a.Author, true)
	}
	pdf.SetCreator("portfolio-core", false)
	pdf.SetCreationDate(a.now())
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPG"}
	pdf.RegisterImageOptionsReader(imageName, opts, bytes.NewReader(img))
	pdf.ImageOptions(imageName, 0, 0, pageWidth, pageHeight, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &AssemblyError{Message: "failed to write PDF", Cause: err}
	}

	width, height := pdf.GetPageSize()
	if a.Verbose {
		log.Printf("[PDF] Assembled %.1fx%.1fmm page from %dx%d raster (%d bytes)",
			width, height, raster.Width, raster.Height, buf.Len())
	}
	return &Document{data: buf.Bytes(), widthMM: width, heightMM: height}, nil
}

// encodeJPEG flattens the raster onto white and re-encodes it.
func (a *Assembler) encodeJPEG(raster *capture.Raster) ([]byte, error) {
	src, err := raster.Image()
	if err != nil {
		return nil, &AssemblyError{Message: "failed to decode raster", Cause: err}
	}

	bounds := src.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.White, image.Point{}, draw.Src)
	draw.Draw(flat, bounds, src, bounds.Min, draw.Over)

	quality := a.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: quality}); err != nil {
		return nil, &AssemblyError{Message: fmt.Sprintf("failed to encode %dx%d raster as JPEG", raster.Width, raster.Height), Cause: err}
	}
	return buf.Bytes(), nil
}

func (a *Assembler) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}
