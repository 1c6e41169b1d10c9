package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

var errNotUTF8 = errors.New("content is not valid UTF-8 text")

// Text accepts UTF-8 content as is, minus a byte order mark.
func Text(_ context.Context, content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return "", errNotUTF8
	}
	return string(content), nil
}

// CSV renders each record on its own line with fields joined by ", ".
func CSV(ctx context.Context, content []byte) (string, error) {
	raw, err := Text(ctx, content)
	if err != nil {
		return "", err
	}
	r := csv.NewReader(strings.NewReader(raw))
	r.FieldsPerRecord = -1

	var b strings.Builder
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		b.WriteString(strings.Join(rec, ", "))
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// JSON validates the document and re-indents it so it splits on lines.
func JSON(ctx context.Context, content []byte) (string, error) {
	raw, err := Text(ctx, content)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		return "", fmt.Errorf("parse json: %w", err)
	}
	return buf.String(), nil
}

var (
	dropTags      = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg)[^>]*>.*?</(script|style|noscript|head|svg)>`)
	htmlComments  = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockBoundary = regexp.MustCompile(`(?i)</?(p|div|br|hr|h[1-6]|li|tr|blockquote|pre|table|section|article)(\s[^>]*)?/?>`)
	anyTag        = regexp.MustCompile(`<[^>]+>`)
	multiSpaces   = regexp.MustCompile(`[ \t]+`)
)

// HTML strips markup and keeps one line per block element.
func HTML(ctx context.Context, content []byte) (string, error) {
	s, err := Text(ctx, content)
	if err != nil {
		return "", err
	}
	s = dropTags.ReplaceAllString(s, "")
	s = htmlComments.ReplaceAllString(s, "")
	s = blockBoundary.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = multiSpaces.ReplaceAllString(s, " ")
	return joinNonEmptyLines(s), nil
}

type docxDocument struct {
	Body struct {
		Paragraphs []struct {
			Runs []struct {
				Text []string `xml:"t"`
			} `xml:"r"`
		} `xml:"p"`
	} `xml:"body"`
}

// DOCX reads word/document.xml from the archive, one line per paragraph.
func DOCX(_ context.Context, content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open document.xml: %w", err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("read document.xml: %w", err)
		}

		var doc docxDocument
		if err := xml.Unmarshal(data, &doc); err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		lines := make([]string, 0, len(doc.Body.Paragraphs))
		for _, p := range doc.Body.Paragraphs {
			var b strings.Builder
			for _, r := range p.Runs {
				for _, t := range r.Text {
					b.WriteString(t)
				}
			}
			lines = append(lines, b.String())
		}
		return joinNonEmptyLines(strings.Join(lines, "\n")), nil
	}
	return "", errors.New("docx archive has no word/document.xml")
}

func joinNonEmptyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
