package generator

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyDocument = errors.New("document contains no extractable text")

// IsPDF 按 mime 类型、扩展名或文件头判断
func IsPDF(data []byte, filename, mimeType string) bool {
	if strings.EqualFold(mimeType, "application/pdf") {
		return true
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF"))
}

// ExtractPDFText 提取 PDF 纯文本
func ExtractPDFText(data []byte) (text string, err error) {
	// 损坏的 PDF 会让解析库 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}

	text = strings.TrimSpace(buf.String())
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// ExtractText PDF 走解析，其余按 UTF-8 文本处理
func ExtractText(data []byte, filename, mimeType string) (string, error) {
	if IsPDF(data, filename, mimeType) {
		return ExtractPDFText(data)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// imageMediaType 返回图片的 media type，非图片返回空串
func imageMediaType(filename, mimeType string) string {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return strings.ToLower(mimeType)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return ""
}
