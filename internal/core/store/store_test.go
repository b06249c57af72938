package store

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/juju/errors"
)

// fakeS3 is an in-memory bucket that pages its listing two keys at a time.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	pages   int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("no such key")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	start := 0
	if in.ContinuationToken != nil {
		for i, k := range keys {
			if k == *in.ContinuationToken {
				start = i
			}
		}
	}
	end := start + 2
	out := &s3.ListObjectsV2Output{}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	} else {
		end = len(keys)
	}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(f.objects[k]))),
			LastModified: aws.Time(time.Unix(0, 0)),
		})
	}
	return out, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestS3Store_PutGetList(t *testing.T) {
	fake := newFakeS3()
	s := newS3Store(fake, "backups", "/kodi/")

	src := filepath.Join(t.TempDir(), "living-room.zip")
	writeFile(t, src, "PK-data")

	key, err := s.Put(context.Background(), "living-room.zip", src)
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if key != "kodi/living-room.zip" {
		t.Errorf("key = %q, want kodi/living-room.zip", key)
	}

	for _, k := range []string{"kodi/backup10.zip", "kodi/backup9.zip", "kodi/notes.txt", "other/x.zip"} {
		fake.objects[k] = []byte("x")
	}

	objs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	want := []string{"kodi/backup9.zip", "kodi/backup10.zip", "kodi/living-room.zip"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("List() = %v, want %v", keys, want)
	}
	if fake.pages < 2 {
		t.Errorf("listing used %d pages, want several", fake.pages)
	}

	dest := filepath.Join(t.TempDir(), "in", "restore.zip")
	if err := s.Get(context.Background(), key, dest); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "PK-data" {
		t.Errorf("downloaded %q", data)
	}
}

func TestS3Store_GetMissing(t *testing.T) {
	s := newS3Store(newFakeS3(), "backups", "")
	dest := filepath.Join(t.TempDir(), "restore.zip")
	if err := s.Get(context.Background(), "nope.zip", dest); err == nil {
		t.Fatal("Get() succeeded for missing key")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("destination created for missing key")
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1"})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("NewS3Store() error = %v, want ErrNotConfigured", err)
	}
}

func TestDirStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "share")
	s := NewDirStore(dir)

	objs, err := s.List(context.Background())
	if err != nil || len(objs) != 0 {
		t.Fatalf("List() on missing dir = %v, %v", objs, err)
	}

	src := filepath.Join(t.TempDir(), "a.zip")
	writeFile(t, src, "zipdata")
	key, err := s.Put(context.Background(), "a.zip", src)
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	writeFile(t, filepath.Join(dir, "readme.txt"), "x")

	objs, err = s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(objs) != 1 || objs[0].Key != "a.zip" || objs[0].Size != 7 {
		t.Errorf("List() = %+v", objs)
	}

	dest := filepath.Join(t.TempDir(), "b.zip")
	if err := s.Get(context.Background(), key, dest); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if err := s.Get(context.Background(), "../a.zip", dest); err == nil {
		t.Error("Get() accepted a path outside the store")
	}
}

func TestJoinKey(t *testing.T) {
	tests := []struct{ prefix, name, want string }{
		{"", "a.zip", "a.zip"},
		{"/", "a.zip", "a.zip"},
		{"kodi", "a.zip", "kodi/a.zip"},
		{"/kodi/boxes/", "a.zip", "kodi/boxes/a.zip"},
		{"kodi", "", "kodi"},
	}
	for _, tt := range tests {
		if got := joinKey(tt.prefix, tt.name); got != tt.want {
			t.Errorf("joinKey(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}
