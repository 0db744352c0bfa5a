package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const docxBody = "word/document.xml"

// docxTable collects the row being read for one (possibly nested) table.
type docxTable struct {
	row  []string
	cell []string
}

func docxText(content []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx container: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != docxBody {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", docxBody, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", docxBody, err)
		}
		return parseDocx(data)
	}

	return "", errors.New("docx has no word/document.xml")
}

// parseDocx walks the body in document order. Paragraphs nested in text boxes
// and content controls are kept; table rows become "cell | cell" lines.
func parseDocx(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		lines  []string
		paras  []*strings.Builder
		tables []*docxTable
		inText bool
	)

	// emit places a finished line into the innermost open cell, or the output.
	emit := func(line string) {
		if line == "" {
			return
		}
		if n := len(tables); n > 0 {
			tables[n-1].cell = append(tables[n-1].cell, line)
			return
		}
		lines = append(lines, line)
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", docxBody, err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "Fallback":
				// mc:Fallback repeats the text box content of mc:Choice
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("parse %s: %w", docxBody, err)
				}
			case "p":
				paras = append(paras, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if n := len(paras); n > 0 {
					paras[n-1].WriteByte(' ')
				}
			case "tbl":
				tables = append(tables, &docxTable{})
			}

		case xml.CharData:
			if inText && len(paras) > 0 {
				paras[len(paras)-1].Write(el)
			}

		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if n := len(paras); n > 0 {
					text := strings.TrimSpace(paras[n-1].String())
					paras = paras[:n-1]
					emit(text)
				}
			case "tc":
				if n := len(tables); n > 0 {
					t := tables[n-1]
					if len(t.cell) > 0 {
						t.row = append(t.row, strings.Join(t.cell, " "))
					}
					t.cell = nil
				}
			case "tr":
				if n := len(tables); n > 0 {
					t := tables[n-1]
					row := strings.Join(t.row, " | ")
					t.row = nil
					// a nested table row belongs to the enclosing cell
					tables = tables[:n-1]
					emit(row)
					tables = append(tables, t)
				}
			case "tbl":
				if n := len(tables); n > 0 {
					tables = tables[:n-1]
				}
			}
		}
	}

	return strings.Join(lines, "\n"), nil
}

func plainText(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", errors.New("text is not valid UTF-8")
	}
	return string(content), nil
}
