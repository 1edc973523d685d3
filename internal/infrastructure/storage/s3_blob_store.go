package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jhoicas/einvoice-gateway/internal/application/submission"
	"github.com/jhoicas/einvoice-gateway/internal/domain"
)

var _ submission.BlobStore = (*S3BlobStore)(nil)

// Config acceso al bucket donde se guardan los XML generados.
type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // vacío = AWS; p. ej. http://localhost:4566 para LocalStack
	AccessKey string // vacío = cadena de credenciales por defecto del SDK
	SecretKey string
	Prefix    string
}

// ObjectAPI subconjunto del cliente S3 que usa el almacén.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3BlobStore BlobStore sobre S3 o compatible.
type S3BlobStore struct {
	api    ObjectAPI
	bucket string
	prefix string
}

// NewS3BlobStore carga la configuración del SDK y construye el cliente.
func NewS3BlobStore(ctx context.Context, cfg Config) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: bucket vacío")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3BlobStoreWithAPI(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3BlobStoreWithAPI construye el almacén sobre un cliente ya creado.
func NewS3BlobStoreWithAPI(api ObjectAPI, bucket, prefix string) *S3BlobStore {
	return &S3BlobStore{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (s *S3BlobStore) key(path string) string {
	path = strings.TrimLeft(path, "/")
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}

// Write sobrescribe el objeto.
func (s *S3BlobStore) Write(ctx context.Context, path string, data []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(path)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/xml"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", path, err)
	}
	return nil
}

// Read devuelve domain.ErrNotFound si el objeto no existe.
func (s *S3BlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(path)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("object %s: %w", path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get object %s: %w", path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}
