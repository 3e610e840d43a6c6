package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type apiError struct {
	code string
}

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	if in.ContentType != nil {
		m.types[*in.Key] = *in.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &apiError{code: "NotFound"}
	}
	return &s3.HeadObjectOutput{}, nil
}

// exercise runs the FileStore contract against fs.
func exercise(t *testing.T, fs FileStore) {
	t.Helper()
	ctx := context.Background()

	if ok, err := fs.Exists(ctx, "models/a.bin"); err != nil || ok {
		t.Fatalf("Exists before write = %v, %v", ok, err)
	}
	if _, err := fs.Read(ctx, "models/a.bin"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read missing err = %v, want ErrNotExist", err)
	}

	if err := WriteFile(ctx, fs, "models/a.bin", []byte("weights")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(ctx, fs, "models/a.bin")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "weights" {
		t.Fatalf("ReadFile = %q, want weights", got)
	}
	if ok, err := fs.Exists(ctx, "models/a.bin"); err != nil || !ok {
		t.Fatalf("Exists after write = %v, %v", ok, err)
	}

	if err := WriteFile(ctx, fs, "models/a.bin", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if got, _ := ReadFile(ctx, fs, "models/a.bin"); string(got) != "v2" {
		t.Fatalf("overwrite = %q, want v2", got)
	}

	if err := fs.Delete(ctx, "models/a.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := fs.Delete(ctx, "models/a.bin"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if ok, _ := fs.Exists(ctx, "models/a.bin"); ok {
		t.Fatal("file still exists after Delete")
	}
}

func TestLocal(t *testing.T) {
	fs, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exercise(t, fs)
}

func TestLocalRejectsEscape(t *testing.T) {
	fs, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Read(context.Background(), "../outside"); err == nil {
		t.Fatal("path escaping the root should be rejected")
	}
}

func TestLocalWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	fs, _ := NewLocal(dir)
	w, err := fs.Write(context.Background(), "rec.wav")
	if err != nil {
		t.Fatal(err)
	}
	w.Write([]byte("partial"))
	if _, err := os.Stat(filepath.Join(dir, "rec.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file visible before Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "rec.wav")); err != nil {
		t.Fatalf("file missing after Close: %v", err)
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryNames(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	WriteFile(ctx, m, "b", nil)
	WriteFile(ctx, m, "a", nil)
	names := m.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Names() = %v", names)
	}
}

func TestS3(t *testing.T) {
	exercise(t, NewS3(newMockS3(), "bucket", ""))
}

func TestS3Prefix(t *testing.T) {
	mock := newMockS3()
	fs := NewS3(mock, "bucket", "/navi/")
	if err := WriteFile(context.Background(), fs, "recordings/x.wav", []byte("RIFF")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["navi/recordings/x.wav"]; !ok {
		t.Fatalf("objects = %v, want key navi/recordings/x.wav", mock.objects)
	}
	if got := mock.types["navi/recordings/x.wav"]; got != "audio/wav" {
		t.Fatalf("content type = %q, want audio/wav", got)
	}
}

func TestS3WriteError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	fs := NewS3(mock, "bucket", "")
	if err := WriteFile(context.Background(), fs, "x", []byte("1")); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestJoin(t *testing.T) {
	tests := []struct{ base, rel, want string }{
		{"models/cmd.yaml", "cmd.onnx", "models/cmd.onnx"},
		{"cmd.yaml", "weights/cmd.bin", "weights/cmd.bin"},
		{"models/cmd.yaml", "/shared/cmd.bin", "shared/cmd.bin"},
		{"models/cmd.yaml", "../cmd.bin", "cmd.bin"},
	}
	for _, tt := range tests {
		if got := Join(tt.base, tt.rel); got != tt.want {
			t.Errorf("Join(%q, %q) = %q, want %q", tt.base, tt.rel, got, tt.want)
		}
	}
}
