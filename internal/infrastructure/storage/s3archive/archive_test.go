package s3archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploaderFake struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *uploaderFake) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.input = input
	b, _ := io.ReadAll(input.Body)
	f.body = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return &manager.UploadOutput{}, nil
}

func TestArchiveUploadsUnderPrefix(t *testing.T) {
	up := &uploaderFake{}
	a := newArchive(up, "bi-docs", "documentos")

	uri, err := a.Archive(context.Background(), "rh/manual.pdf", strings.NewReader("%PDF"), "")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if uri != "s3://bi-docs/documentos/rh/manual.pdf" {
		t.Fatalf("unexpected uri %q", uri)
	}
	if aws.ToString(up.input.Key) != "documentos/rh/manual.pdf" || aws.ToString(up.input.ContentType) != "application/pdf" {
		t.Fatalf("unexpected input key=%s type=%s", aws.ToString(up.input.Key), aws.ToString(up.input.ContentType))
	}
	if up.body != "%PDF" {
		t.Fatalf("unexpected body %q", up.body)
	}
}

func TestArchiveWrapsUploadError(t *testing.T) {
	a := newArchive(&uploaderFake{err: errors.New("access denied")}, "bi-docs", "")
	_, err := a.Archive(context.Background(), "rh/a.pdf", strings.NewReader("x"), "application/pdf")
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Fatalf("expected wrapped upload error, got %v", err)
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	if _, err := New(context.Background(), Config{Region: "us-east-1"}); err == nil {
		t.Fatalf("expected bucket error")
	}
	if _, err := New(context.Background(), Config{Bucket: "b"}); err == nil {
		t.Fatalf("expected region error")
	}
}
