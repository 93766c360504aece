package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/payment"
	"github.com/applysmartuk/statement_server/internal/pkg/response"
	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(r http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performRawRequest(r http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	return resp
}

// dataMap 把 envelope 中的 data 转成 map 便于断言
func dataMap(t *testing.T, resp response.Response) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data should be an object, got %T", resp.Data)
	return data
}

type stubGenerator struct{}

func (stubGenerator) Generate(ctx context.Context, in dto.GenerationInput) (string, error) {
	return "## Statement\nGenerated for " + in.Name, nil
}

type stubNotifier struct {
	statements int
	notices    int
}

func (n *stubNotifier) SendStatement(ctx context.Context, to, name, role, trust, statement string) error {
	n.statements++
	return nil
}

func (n *stubNotifier) SendInsufficientCredits(ctx context.Context, to, name, checkoutURL string) error {
	n.notices++
	return nil
}

// inlineRunner 在当前 goroutine 执行任务
type inlineRunner struct {
	names []string
}

func (r *inlineRunner) Submit(name string, fn tasks.Func) string {
	r.names = append(r.names, name)
	fn(context.Background())
	return fmt.Sprintf("task-%d", len(r.names))
}

type stubProvider struct {
	calls int
}

func (p *stubProvider) CreateCheckoutSession(ctx context.Context, params payment.CheckoutParams) (*payment.CheckoutSession, error) {
	p.calls++
	id := fmt.Sprintf("cs_test_%d", p.calls)
	return &payment.CheckoutSession{ID: id, URL: "https://checkout.stripe.com/c/pay/" + id}, nil
}

func (p *stubProvider) CreateProductPrice(ctx context.Context, params payment.ProductParams) (string, error) {
	p.calls++
	return fmt.Sprintf("price_test_%d", p.calls), nil
}
