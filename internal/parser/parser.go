package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"pdf-assistant/internal/models"
)

var (
	docxTextRe  = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	docxParaRe  = regexp.MustCompile(`</w:p>`)
	slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// Extract turns a document into ordered pages, one per physical page, slide or
// sheet. The format is chosen from the file extension of name.
func Extract(name string, data []byte) ([]models.Page, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var (
		texts []string
		err   error
	)
	switch ext {
	case ".pdf":
		texts, err = pdfPages(data)
	case ".docx":
		texts, err = docxPages(data)
	case ".pptx":
		texts, err = pptxPages(data)
	case ".xlsx":
		texts, err = xlsxPages(data)
	case ".ods":
		texts, err = odsPages(data)
	case ".md", ".markdown":
		texts, err = markdownPages(data)
	case ".txt":
		texts = []string{string(data)}
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}

	pages := make([]models.Page, 0, len(texts))
	for i, text := range texts {
		page, err := models.NewPage(i+1, text)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	log.Debug().Str("file", name).Int("pages", len(pages)).Msg("Extracted pages")
	return pages, nil
}

// ExtractFile reads path and extracts its pages
func ExtractFile(path string) ([]models.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Extract(path, data)
}

func pdfPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	numPages := reader.NumPage()
	texts := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		texts = append(texts, pageText)
	}
	return texts, nil
}

// DOCX has no page numbers, the whole body is one page
func docxPages(data []byte) ([]string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := docxParaRe.ReplaceAllString(r.Editable().GetContent(), "\n")
	var text strings.Builder
	for _, line := range strings.Split(content, "\n") {
		var para strings.Builder
		for _, m := range docxTextRe.FindAllStringSubmatch(line, -1) {
			para.WriteString(m[1])
		}
		if p := strings.TrimSpace(para.String()); p != "" {
			text.WriteString(html.UnescapeString(p))
			text.WriteString("\n")
		}
	}
	return []string{text.String()}, nil
}

func pptxPages(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range zr.File {
		m := slideNameRe.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		num, _ := strconv.Atoi(m[1])
		slides = append(slides, slide{num: num, text: extractTextFromXML(string(raw))})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	texts := make([]string, len(slides))
	for i, s := range slides {
		texts[i] = s.text
	}
	return texts, nil
}

func xlsxPages(data []byte) ([]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s.\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		texts = append(texts, text.String())
	}
	return texts, nil
}

func odsPages(data []byte) ([]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var texts []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("Sheet: %s.\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		texts = append(texts, text.String())
	}
	return texts, nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		endIdx := strings.Index(part, "</a:t>")
		if endIdx >= 0 {
			text.WriteString(html.UnescapeString(part[:endIdx]) + " ")
		}
	}
	return text.String()
}
