package recovery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"dockeep/internal/docstore"
	"dockeep/internal/model"
)

// S3Store keeps recovery snapshots in an S3 bucket under
// <prefix>recovery_<id>.json. S3 object writes are atomic, so no
// temp-and-rename dance is needed.
type S3Store struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	prefix    string
	encryptor docstore.Encryptor
}

// S3Options configures an S3Store. AccessKey/SecretKey are optional;
// when empty the default AWS credential chain applies.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
}

// NewS3Store creates an S3-backed snapshot store.
func NewS3Store(ctx context.Context, opts S3Options, encryptor docstore.Encryptor) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 snapshot store requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:    client,
		uploader:  manager.NewUploader(client),
		bucket:    opts.Bucket,
		prefix:    opts.Prefix,
		encryptor: encryptor,
	}, nil
}

func (s *S3Store) key(documentID string) string {
	return s.prefix + snapshotName(documentID)
}

func (s *S3Store) Save(ctx context.Context, doc *model.Document) error {
	data, err := encodeSnapshot(doc, s.encryptor)
	if err != nil {
		return err
	}

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(doc.ID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("uploading snapshot for %s: %w", doc.ID, err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context, documentID string) (*model.Document, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(documentID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("no recovery snapshot for document %s: %w", documentID, docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching snapshot for %s: %w", documentID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot for %s: %w", documentID, err)
	}
	return decodeSnapshot(data, s.encryptor)
}

func (s *S3Store) Delete(ctx context.Context, documentID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(documentID)),
	})
	if err != nil {
		return fmt.Errorf("removing snapshot for %s: %w", documentID, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]docstore.SnapshotInfo, error) {
	var infos []docstore.SnapshotInfo

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + snapshotPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			name := aws.ToString(obj.Key)[len(s.prefix):]
			id, ok := parseSnapshotName(name)
			if !ok {
				continue
			}
			infos = append(infos, docstore.SnapshotInfo{
				DocumentID: id,
				ModifiedAt: aws.ToTime(obj.LastModified),
				Size:       aws.ToInt64(obj.Size),
			})
		}
	}
	return infos, nil
}

func (s *S3Store) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, info := range infos {
		if !info.ModifiedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(ctx, info.DocumentID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

var _ docstore.SnapshotStore = (*S3Store)(nil)
