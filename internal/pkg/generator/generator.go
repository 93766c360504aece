package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/model/dto"
)

const (
	anthropicVersion = "2023-06-01"
	maxDownloadSize  = 20 << 20
)

var ErrEmptyResponse = errors.New("model returned no text content")

// Client Anthropic Messages API 客户端
type Client struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	http      *http.Client
}

func NewClient(cfg *config.GeneratorConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Client{
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      &http.Client{Timeout: timeout},
	}
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageParam struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type messagesRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    string         `json:"system"`
	Messages  []messageParam `json:"messages"`
}

type messagesResponse struct {
	Content []contentBlock `json:"content"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate 下载 CV 和岗位说明，调用模型生成 Supporting Information
func (c *Client) Generate(ctx context.Context, in dto.GenerationInput) (string, error) {
	cvData, specData, err := c.downloadBoth(ctx, in.CVURL, in.PersonSpecURL)
	if err != nil {
		return "", err
	}

	cvText, err := ExtractText(cvData, in.CVFilename, "")
	if err != nil {
		return "", fmt.Errorf("cv: %w", err)
	}

	var blocks []contentBlock
	var specText string
	if mediaType := imageMediaType(in.PersonSpecFilename, in.PersonSpecMimeType); mediaType != "" {
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: mediaType,
				Data:      base64.StdEncoding.EncodeToString(specData),
			},
		})
	} else {
		specText, err = ExtractText(specData, in.PersonSpecFilename, in.PersonSpecMimeType)
		if err != nil {
			return "", fmt.Errorf("person specification: %w", err)
		}
	}

	blocks = append(blocks, contentBlock{
		Type: "text",
		Text: buildUserPrompt(in.Name, in.Role, in.Trust, cvText, specText),
	})

	return c.createMessage(ctx, blocks)
}

func (c *Client) createMessage(ctx context.Context, blocks []contentBlock) (string, error) {
	body, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages:  []messageParam{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}
	defer resp.Body.Close()

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode messages response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("messages api %d %s: %s", resp.StatusCode, out.Error.Type, out.Error.Message)
		}
		return "", fmt.Errorf("messages api returned status %d", resp.StatusCode)
	}

	var text strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

// downloadBoth 并发下载两个文件
func (c *Client) downloadBoth(ctx context.Context, firstURL, secondURL string) ([]byte, []byte, error) {
	var (
		wg                  sync.WaitGroup
		first, second       []byte
		firstErr, secondErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		first, firstErr = c.download(ctx, firstURL)
	}()
	go func() {
		defer wg.Done()
		second, secondErr = c.download(ctx, secondURL)
	}()
	wg.Wait()

	if firstErr != nil {
		return nil, nil, fmt.Errorf("download cv: %w", firstErr)
	}
	if secondErr != nil {
		return nil, nil, fmt.Errorf("download person specification: %w", secondErr)
	}
	return first, second, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.New("empty file url")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxDownloadSize)
	}
	return data, nil
}
