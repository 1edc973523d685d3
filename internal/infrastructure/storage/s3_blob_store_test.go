package storage_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
	"github.com/jhoicas/einvoice-gateway/internal/infrastructure/storage"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func TestS3BlobStore_WriteRead(t *testing.T) {
	api := newFakeS3()
	store := storage.NewS3BlobStoreWithAPI(api, "einvoices", "/xml/")
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, "18547290/2024/03/inv-1.xml", []byte("<Invoice/>")))
	assert.Contains(t, api.objects, "einvoices/xml/18547290/2024/03/inv-1.xml")
	assert.Equal(t, "application/xml", api.types["xml/18547290/2024/03/inv-1.xml"])

	got, err := store.Read(ctx, "18547290/2024/03/inv-1.xml")
	require.NoError(t, err)
	assert.Equal(t, "<Invoice/>", string(got))
}

func TestS3BlobStore_ReadMissing(t *testing.T) {
	store := storage.NewS3BlobStoreWithAPI(newFakeS3(), "einvoices", "")

	_, err := store.Read(context.Background(), "missing.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNewS3BlobStore_RequiresBucket(t *testing.T) {
	_, err := storage.NewS3BlobStore(context.Background(), storage.Config{})
	require.Error(t, err)
}
