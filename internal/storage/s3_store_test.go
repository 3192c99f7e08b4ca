package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(data))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3StoreWithClient(fake, "output-bucket")

	err := store.Put(context.Background(), &Artifact{
		Key:         "__outputs/abc/about.html",
		Body:        strings.NewReader("<h1>about</h1>"),
		Size:        14,
		ContentType: "text/html; charset=utf-8",
	})
	require.NoError(t, err)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "output-bucket", aws.ToString(in.Bucket))
	assert.Equal(t, "__outputs/abc/about.html", aws.ToString(in.Key))
	assert.Equal(t, "text/html; charset=utf-8", aws.ToString(in.ContentType))
	assert.Equal(t, int64(14), aws.ToInt64(in.ContentLength))
	assert.Equal(t, "<h1>about</h1>", fake.bodies[0])
}

func TestS3Store_Put_UnknownTypeAndSize(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3StoreWithClient(fake, "b")

	require.NoError(t, store.Put(context.Background(), &Artifact{Key: "k", Body: strings.NewReader("x"), Size: -1}))
	assert.Nil(t, fake.inputs[0].ContentType)
	assert.Nil(t, fake.inputs[0].ContentLength)
}

func TestS3Store_Put_Error(t *testing.T) {
	store := NewS3StoreWithClient(&fakeS3{err: errors.New("AccessDenied")}, "b")
	err := store.Put(context.Background(), &Artifact{Key: "__outputs/abc/a.css", Body: strings.NewReader("x"), Size: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "__outputs/abc/a.css")
	assert.Contains(t, err.Error(), "AccessDenied")
}
