package middleware

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBody(t *testing.T, data string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	}
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

// paymentHandler повторяет сумму из тела запроса на проведение взноса.
func paymentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Amount string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"number":"Rec000001","amount":"` + req.Amount + `"}`))
	}
}

func TestGzipMiddlewareReceiptRequest(t *testing.T) {
	tests := []struct {
		name           string
		compressedBody bool
		acceptEncoding string
		wantEncoding   string
	}{
		{name: "gzip body, gzip response", compressedBody: true, acceptEncoding: "gzip, deflate", wantEncoding: "gzip"},
		{name: "gzip body, plain response", compressedBody: true, wantEncoding: ""},
		{name: "plain body, gzip response", acceptEncoding: "gzip", wantEncoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"amount":"3.00"}`
			var reqBody io.Reader = strings.NewReader(body)
			if tt.compressedBody {
				reqBody = gzipBody(t, body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/policies/P00001/receipts", reqBody)
			req.Header.Set("Content-Type", "application/json")
			if tt.compressedBody {
				req.Header.Set("Content-Encoding", "gzip")
			}
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()

			GzipMiddleware(paymentHandler()).ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, http.StatusCreated, res.StatusCode)
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))
			assert.JSONEq(t, `{"number":"Rec000001","amount":"3.00"}`, readBody(t, res))
		})
	}
}

func TestGzipMiddlewareStatementExports(t *testing.T) {
	tests := []struct {
		name         string
		contentType  string
		wantEncoding string
	}{
		{name: "csv export is compressed", contentType: "text/csv", wantEncoding: "gzip"},
		{name: "pdf export is passed through", contentType: "application/pdf", wantEncoding: ""},
	}

	payload := "contract_id,client,status,premium\nP00001,Rudo Chikore,Active,1.00\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.Header().Set("Content-Disposition", `attachment; filename="billing_ppszesa_2024-03"`)
				_, _ = w.Write([]byte(payload))
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/statements/billing/ppszesa?month=2024-03", nil)
			req.Header.Set("Accept-Encoding", "gzip")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, http.StatusOK, res.StatusCode)
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))
			assert.Equal(t, tt.contentType, res.Header.Get("Content-Type"))
			assert.Equal(t, payload, readBody(t, res))
		})
	}
}

func TestGzipMiddlewareNoContentIsNotCompressed(t *testing.T) {
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/receipts/Rec000001", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Empty(t, res.Header.Get("Content-Encoding"))
	assert.Zero(t, w.Body.Len())
}

func TestGzipMiddlewareRejectsBrokenBody(t *testing.T) {
	called := false
	h := GzipMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/policies/P00001/receipts", strings.NewReader(`{"amount":"3.00"}`))
	req.Header.Set("Content-Encoding", "gzip")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, called)
}
