package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	puts    map[string][]byte
	types   map[string]string
	deleted []string
	err     error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	if f.puts == nil {
		f.puts = map[string][]byte{}
		f.types = map[string]string{}
	}
	f.puts[*in.Key] = body
	f.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	objects := &fakeObjects{}
	s := newS3(objects, "bucket", "https://cdn.example.com/")

	url, err := s.Upload(context.Background(), []byte("png"), "me.png", "image/png", "profile-pics/u1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/profile-pics/u1/"), url)
	assert.True(t, strings.HasSuffix(url, "-me.png"), url)

	key := KeyFromURL(s.PublicURL(), url)
	assert.Equal(t, []byte("png"), objects.puts[key])
	assert.Equal(t, "image/png", objects.types[key])
}

func TestUpload_Error(t *testing.T) {
	s := newS3(&fakeObjects{err: errors.New("boom")}, "bucket", "https://cdn")

	_, err := s.Upload(context.Background(), []byte("x"), "a.png", "image/png", "p")
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	objects := &fakeObjects{}
	s := newS3(objects, "bucket", "https://cdn")

	require.NoError(t, s.Delete(context.Background(), "profile-pics/u1/a.png"))
	assert.Equal(t, []string{"profile-pics/u1/a.png"}, objects.deleted)
	assert.Error(t, s.Delete(context.Background(), ""))
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("/profile-pics/u1/", `C:\Users\me\my photo.png`)
	assert.True(t, strings.HasPrefix(key, "profile-pics/u1/"), key)
	assert.True(t, strings.HasSuffix(key, "-my-photo.png"), key)
	assert.NotContains(t, key, " ")
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		base, url, want string
	}{
		{"https://cdn.example.com", "https://cdn.example.com/profile-pics/u1/a.png", "profile-pics/u1/a.png"},
		{"https://cdn.example.com/", "https://cdn.example.com/a.png", "a.png"},
		{"https://cdn.example.com", "https://lh3.googleusercontent.com/a.png", ""},
		{"https://cdn.example.com", "https://cdn.example.com.evil/a.png", ""},
		{"", "https://cdn.example.com/a.png", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KeyFromURL(tt.base, tt.url), tt.url)
	}
}
