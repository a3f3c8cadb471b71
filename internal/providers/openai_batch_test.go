package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jackzampolin/dwcbatch/internal/batch"
)

func newTestBatchClient(t *testing.T, baseURL string) *OpenAIBatchClient {
	t.Helper()
	client, err := NewOpenAIBatchClient(OpenAIBatchConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		MaxRetries: -1,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewOpenAIBatchClient() error = %v", err)
	}
	return client
}

func TestNewOpenAIBatchClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIBatchClient(OpenAIBatchConfig{APIKey: "  "})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenAIBatchUploadSuccess(t *testing.T) {
	var purpose, filename, uploaded, auth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		auth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		purpose = r.FormValue("purpose")
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		filename = header.Filename
		b, _ := io.ReadAll(f)
		uploaded = string(b)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file-abc","object":"file","bytes":12,"created_at":1,"filename":"batch.jsonl","purpose":"batch","status":"processed"}`))
	}))
	defer server.Close()

	client := newTestBatchClient(t, server.URL)
	payload := []byte(`{"custom_id":"a"}` + "\n")

	fileID, err := client.UploadBatchFile(context.Background(), "batch.jsonl", payload)
	if err != nil {
		t.Fatalf("UploadBatchFile() error = %v", err)
	}
	if fileID != "file-abc" {
		t.Errorf("expected file-abc, got %q", fileID)
	}
	if purpose != "batch" {
		t.Errorf("expected purpose batch, got %q", purpose)
	}
	if filename != "batch.jsonl" {
		t.Errorf("expected filename batch.jsonl, got %q", filename)
	}
	if uploaded != string(payload) {
		t.Errorf("uploaded payload mismatch: %q", uploaded)
	}
	if auth != "Bearer test-key" {
		t.Errorf("expected bearer auth header, got %q", auth)
	}
}

func TestOpenAIBatchUploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"file too large","type":"invalid_request_error","param":"file","code":"file_too_large"}}`))
	}))
	defer server.Close()

	client := newTestBatchClient(t, server.URL)
	_, err := client.UploadBatchFile(context.Background(), "batch.jsonl", []byte("{}\n"))

	var uploadErr *batch.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %T: %v", err, err)
	}
	if uploadErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", uploadErr.StatusCode)
	}
}

func TestOpenAIBatchUploadTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := newTestBatchClient(t, url)
	_, err := client.UploadBatchFile(context.Background(), "batch.jsonl", []byte("{}\n"))

	var uploadErr *batch.UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected UploadError, got %T: %v", err, err)
	}
	if uploadErr.StatusCode != 0 {
		t.Errorf("expected no status for transport failure, got %d", uploadErr.StatusCode)
	}
}

func TestOpenAIBatchCreate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var body string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/batches" || r.Method != http.MethodPost {
				t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
			}
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"batch_123","object":"batch","endpoint":"/v1/chat/completions","input_file_id":"file-abc","completion_window":"24h","status":"validating","created_at":1,"request_counts":{"total":0,"completed":0,"failed":0}}`))
		}))
		defer server.Close()

		client := newTestBatchClient(t, server.URL)
		job, err := client.CreateBatch(context.Background(), "file-abc", batch.ChatCompletionsEndpoint, batch.CompletionWindow)
		if err != nil {
			t.Fatalf("CreateBatch() error = %v", err)
		}
		if job.ID != "batch_123" || job.Status != "validating" {
			t.Errorf("unexpected job %+v", job)
		}
		for _, want := range []string{`"input_file_id":"file-abc"`, `"endpoint":"/v1/chat/completions"`, `"completion_window":"24h"`} {
			if !strings.Contains(body, want) {
				t.Errorf("request body missing %s: %s", want, body)
			}
		}
	})

	t.Run("rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"invalid input file","type":"invalid_request_error","param":"input_file_id","code":null}}`))
		}))
		defer server.Close()

		client := newTestBatchClient(t, server.URL)
		_, err := client.CreateBatch(context.Background(), "file-missing", batch.ChatCompletionsEndpoint, batch.CompletionWindow)

		var subErr *batch.SubmissionError
		if !errors.As(err, &subErr) {
			t.Fatalf("expected SubmissionError, got %T: %v", err, err)
		}
		if subErr.StatusCode != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", subErr.StatusCode)
		}
		if !strings.Contains(subErr.Body, "invalid input file") {
			t.Errorf("expected raw body in error, got %q", subErr.Body)
		}
	})
}

func TestOpenAIBatchGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/batches/batch_123" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"batch_123","object":"batch","endpoint":"/v1/chat/completions","input_file_id":"file-abc","completion_window":"24h","status":"completed","output_file_id":"file-out","error_file_id":"file-err","created_at":1,"request_counts":{"total":2,"completed":1,"failed":1}}`))
	}))
	defer server.Close()

	client := newTestBatchClient(t, server.URL)
	job, err := client.GetBatch(context.Background(), "batch_123")
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if job.State() != batch.StateCompleted {
		t.Errorf("expected completed, got %q", job.Status)
	}
	if job.OutputFileID != "file-out" || job.ErrorFileID != "file-err" {
		t.Errorf("unexpected file ids %+v", job)
	}
	if job.RequestCounts.Total != 2 || job.RequestCounts.Failed != 1 {
		t.Errorf("unexpected request counts %+v", job.RequestCounts)
	}
}

func TestOpenAIBatchGetNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"No batch found","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	client := newTestBatchClient(t, server.URL)
	_, err := client.GetBatch(context.Background(), "batch_missing")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestOpenAIBatchDownload(t *testing.T) {
	const content = `{"custom_id":"a","response":{"status_code":200,"body":{"choices":[{"message":{"content":"{}"}}]}}}` + "\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files/file-out/content" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte(content))
	}))
	defer server.Close()

	client := newTestBatchClient(t, server.URL)
	got, err := client.DownloadFile(context.Background(), "file-out")
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if string(got) != content {
		t.Errorf("unexpected content %q", got)
	}
}
