package oss

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Devifyo/lumina/internal/domain"
)

type memoryStore struct {
	objects  map[string][]byte
	types    map[string]string
	signErr  error
	expireIn int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) UploadFile(ctx context.Context, bucket, key string, reader io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.objects[bucket+"/"+key] = data
	m.types[bucket+"/"+key] = contentType
	return bucket + "/" + key, nil
}

func (m *memoryStore) GetSignedURL(ctx context.Context, bucket, key string, expiresIn int64) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	m.expireIn = expiresIn
	return "https://signed.example/" + bucket + "/" + key + "?sig=1", nil
}

func (m *memoryStore) PublicURL(bucket, key string) string {
	return buildObjectURL("", "us-east-1", bucket, key)
}

func TestExportAssetSigned(t *testing.T) {
	store := newMemoryStore()
	exp := NewExporter(store, ExporterConfig{Bucket: "results"})
	exp.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	key, url, err := exp.ExportAsset(context.Background(), domain.NewImageAsset([]byte("png"), "image/png"))
	if err != nil {
		t.Fatalf("ExportAsset returned error: %v", err)
	}
	if !strings.HasPrefix(key, "images/2024-05-01/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("key = %q", key)
	}
	if string(store.objects["results/"+key]) != "png" || store.types["results/"+key] != "image/png" {
		t.Fatal("object not stored with decoded bytes and content type")
	}
	if !strings.Contains(url, "sig=1") || store.expireIn != 3600 {
		t.Fatalf("url = %q, expires = %d", url, store.expireIn)
	}
}

func TestExportAssetPublic(t *testing.T) {
	exp := NewExporter(newMemoryStore(), ExporterConfig{Bucket: "results", PublicURL: true})
	key, url, err := exp.ExportAsset(context.Background(), domain.NewImageAsset([]byte("png"), "image/png"))
	if err != nil {
		t.Fatalf("ExportAsset returned error: %v", err)
	}
	if url != "https://results.s3.us-east-1.amazonaws.com/"+key {
		t.Fatalf("url = %q", url)
	}
}

func TestExportAssetErrors(t *testing.T) {
	exp := NewExporter(newMemoryStore(), ExporterConfig{Bucket: "results"})
	if _, _, err := exp.ExportAsset(context.Background(), domain.ImageAsset{}); !errors.Is(err, ErrEmptyAsset) {
		t.Fatalf("error = %v, want ErrEmptyAsset", err)
	}

	store := newMemoryStore()
	store.signErr = errors.New("denied")
	exp = NewExporter(store, ExporterConfig{Bucket: "results"})
	if _, _, err := exp.ExportAsset(context.Background(), domain.NewImageAsset([]byte("png"), "image/png")); err == nil {
		t.Fatal("expected signing error")
	}
}

func TestBuildObjectURL(t *testing.T) {
	cases := []struct {
		endpoint, region, want string
	}{
		{"oss-cn-beijing.aliyuncs.com", "cn-beijing", "https://b.oss-cn-beijing.aliyuncs.com/k.png"},
		{"", "eu-west-1", "https://b.s3.eu-west-1.amazonaws.com/k.png"},
		{"", "", "https://b.s3.amazonaws.com/k.png"},
	}
	for _, c := range cases {
		if got := buildObjectURL(c.endpoint, c.region, "b", "k.png"); got != c.want {
			t.Errorf("buildObjectURL(%q, %q) = %q, want %q", c.endpoint, c.region, got, c.want)
		}
	}
}
