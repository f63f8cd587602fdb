package executor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/yuya-takeyama/sync-s3/pkg/s3client"
)

// mockS3Client is a mock implementation of s3client.Client for testing.
// Calls are recorded; a nil func field means the call succeeds.
type mockS3Client struct {
	listObjectsFunc  func(ctx context.Context, req *s3client.ListObjectsRequest) ([]s3client.Object, error)
	putObjectFunc    func(ctx context.Context, req *s3client.PutObjectRequest) error
	deleteObjectFunc func(ctx context.Context, req *s3client.DeleteObjectRequest) error

	mu      sync.Mutex
	puts    []putCall
	deletes []string
}

type putCall struct {
	req  s3client.PutObjectRequest
	body string
}

func (m *mockS3Client) ListObjects(ctx context.Context, req *s3client.ListObjectsRequest) ([]s3client.Object, error) {
	if m.listObjectsFunc != nil {
		return m.listObjectsFunc(ctx, req)
	}
	return nil, fmt.Errorf("ListObjects not implemented")
}

func (m *mockS3Client) PutObject(ctx context.Context, req *s3client.PutObjectRequest) error {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}

	m.mu.Lock()
	call := putCall{req: *req, body: string(body)}
	call.req.Body = nil
	m.puts = append(m.puts, call)
	m.mu.Unlock()

	if m.putObjectFunc != nil {
		return m.putObjectFunc(ctx, req)
	}
	return nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, req *s3client.DeleteObjectRequest) error {
	m.mu.Lock()
	m.deletes = append(m.deletes, req.Key)
	m.mu.Unlock()

	if m.deleteObjectFunc != nil {
		return m.deleteObjectFunc(ctx, req)
	}
	return nil
}

func (m *mockS3Client) putCalls() []putCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]putCall(nil), m.puts...)
}

func (m *mockS3Client) deleteCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// resultRecorder collects every observed result.
type resultRecorder struct {
	mu      sync.Mutex
	results map[int][]Result
}

func newResultRecorder() *resultRecorder {
	return &resultRecorder{results: make(map[int][]Result)}
}

func (r *resultRecorder) Observe(workerID int, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[workerID] = append(r.results[workerID], res)
}

func (r *resultRecorder) all() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Result
	for _, rs := range r.results {
		out = append(out, rs...)
	}
	return out
}
