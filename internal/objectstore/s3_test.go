package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 is an in-memory bucket implementing S3API
type fakeS3 struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

// ListObjectsV2 uses the index of the next key as continuation token
func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := start + int(aws.ToInt32(in.MaxKeys))
	truncated := end < len(keys)
	if !truncated {
		end = len(keys)
	}

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(truncated)}
	for _, key := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
	}
	if truncated {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func TestNewS3Store_RejectsEmptyBucket(t *testing.T) {
	_, err := NewS3Store(newFakeS3(), "", 0)
	assert.Error(t, err)
}

func TestS3Store_PutGet(t *testing.T) {
	fake := newFakeS3()
	store, err := NewS3Store(fake, "emojirades-dev", 0)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "workspaces/directory/T1/auth.json", []byte(`{"a":1}`), "application/json"))
	assert.Equal(t, "application/json", fake.contentTypes["workspaces/directory/T1/auth.json"])

	body, err := store.Get(ctx, "workspaces/directory/T1/auth.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(body))

	_, err = store.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))
}

func TestS3Store_WalkFollowsContinuationTokens(t *testing.T) {
	fake := newFakeS3()
	store, err := NewS3Store(fake, "emojirades-dev", 2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"s/0/a.json", "s/0/b.json", "s/1/c.json", "s/1/d.json", "s/2/e.json", "other/x"} {
		require.NoError(t, store.Put(ctx, key, []byte("{}"), "application/json"))
	}

	var got []string
	err = Walk(ctx, store, "s/", func(key string) error {
		got = append(got, key)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"s/0/a.json", "s/0/b.json", "s/1/c.json", "s/1/d.json", "s/2/e.json"}, got)
}

func TestS3Store_URI(t *testing.T) {
	store, err := NewS3Store(newFakeS3(), "emojirades-dev", 0)
	require.NoError(t, err)
	assert.Equal(t, "s3://emojirades-dev/workspaces/directory/T1/auth.json", store.URI("workspaces/directory/T1/auth.json"))
}
