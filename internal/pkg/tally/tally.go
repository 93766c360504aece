package tally

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/applysmartuk/statement_server/internal/model/dto"
)

var ErrInvalidSubmission = errors.New("invalid form submission")

// Payload Tally webhook 请求体
type Payload struct {
	EventID   string   `json:"eventId"`
	EventType string   `json:"eventType"`
	CreatedAt string   `json:"createdAt"`
	Data      FormData `json:"data"`
}

type FormData struct {
	ResponseID   string  `json:"responseId"`
	SubmissionID string  `json:"submissionId"`
	FormID       string  `json:"formId"`
	FormName     string  `json:"formName"`
	CreatedAt    string  `json:"createdAt"`
	Fields       []Field `json:"fields"`
}

type Field struct {
	Key     string          `json:"key"`
	Label   *string         `json:"label"`
	Type    string          `json:"type"`
	Value   json.RawMessage `json:"value"`
	Options []Option        `json:"options,omitempty"`
}

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// FileValue FILE_UPLOAD 字段中的单个文件
type FileValue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidSubmission, fmt.Sprintf(format, args...))
}

// Extract 按标签匹配字段，转换为申请数据
// 标签为 null 的字段（如复选框分组本身）会被跳过
func Extract(p *Payload) (*dto.ParsedSubmission, error) {
	var sub dto.ParsedSubmission

	for _, field := range p.Data.Fields {
		if field.Label == nil {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(*field.Label))

		var err error
		switch {
		case strings.Contains(label, "full name"):
			sub.Name, err = stringValue(field.Value)
		case strings.Contains(label, "nhs role"):
			sub.Role, err = stringValue(field.Value)
		case strings.Contains(label, "nhs trust"):
			sub.Trust, err = optionText(field)
		case strings.Contains(label, "person specification"):
			var file *FileValue
			if file, err = firstFile(field.Value); err == nil {
				sub.PersonSpecURL = file.URL
				sub.PersonSpecFilename = file.Name
				sub.PersonSpecMimeType = file.MimeType
			}
		case strings.Contains(label, "cv"):
			var file *FileValue
			if file, err = firstFile(field.Value); err == nil {
				sub.CVURL = file.URL
				sub.CVFilename = file.Name
			}
		case strings.Contains(label, "email"):
			sub.Email, err = stringValue(field.Value)
		case strings.Contains(label, "consent"):
			sub.Consent = truthy(field.Value)
		}
		if err != nil {
			return nil, invalid("field %q: %v", *field.Label, err)
		}
	}

	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.TrimSpace(sub.Email)

	required := []struct {
		name  string
		value string
	}{
		{"full name", sub.Name},
		{"email", sub.Email},
		{"nhs role", sub.Role},
		{"nhs trust", sub.Trust},
		{"cv", sub.CVURL},
		{"person specification", sub.PersonSpecURL},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, invalid("missing %s", r.name)
		}
	}
	if !strings.Contains(sub.Email, "@") {
		return nil, invalid("malformed email %q", sub.Email)
	}

	return &sub, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func stringValue(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected string value")
	}
	return s, nil
}

// optionText 下拉框返回选项 ID 数组，映射为选项文本；找不到时原样返回 ID
func optionText(field Field) (string, error) {
	if isNull(field.Value) {
		return "", nil
	}

	var selected string
	var ids []string
	if err := json.Unmarshal(field.Value, &ids); err == nil {
		if len(ids) == 0 {
			return "", nil
		}
		selected = ids[0]
	} else if err := json.Unmarshal(field.Value, &selected); err != nil {
		return "", fmt.Errorf("expected option id")
	}

	for _, opt := range field.Options {
		if opt.ID == selected {
			return opt.Text, nil
		}
	}
	return selected, nil
}

func firstFile(raw json.RawMessage) (*FileValue, error) {
	if isNull(raw) {
		return nil, fmt.Errorf("no file uploaded")
	}
	var files []FileValue
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("expected file list")
	}
	if len(files) == 0 || files[0].URL == "" {
		return nil, fmt.Errorf("no file uploaded")
	}
	return &files[0], nil
}

// truthy 复选框可能是布尔值、选中项数组或字符串
func truthy(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list) > 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s != ""
	}
	return true
}
