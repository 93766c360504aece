package s3

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/applysmartuk/statement_server/config"
)

func TestClient_Put(t *testing.T) {
	var (
		gotMethod      string
		gotPath        string
		gotContentType string
		gotBody        []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), &config.S3Config{
		Endpoint:        srv.URL,
		Region:          "eu-west-2",
		Bucket:          "statements",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	url, err := client.Put(context.Background(), "statements/acc-1/sub-1.md", []byte("# Statement"), "text/markdown")
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/statements/statements/acc-1/sub-1.md", gotPath)
	assert.Equal(t, "text/markdown", gotContentType)
	assert.Contains(t, string(gotBody), "# Statement")
	assert.Equal(t, srv.URL+"/statements/statements/acc-1/sub-1.md", url)
}

func TestClient_URL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{
			name: "public url",
			cfg:  config.S3Config{Bucket: "b", Region: "eu-west-2", PublicURL: "https://files.example.com/"},
			want: "https://files.example.com/k.md",
		},
		{
			name: "custom endpoint",
			cfg:  config.S3Config{Bucket: "b", Region: "eu-west-2", Endpoint: "http://minio:9000"},
			want: "http://minio:9000/b/k.md",
		},
		{
			name: "aws",
			cfg:  config.S3Config{Bucket: "b", Region: "eu-west-2"},
			want: "https://b.s3.eu-west-2.amazonaws.com/k.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), &tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, client.URL("k.md"))
		})
	}
}
