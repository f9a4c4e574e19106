package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// ObjectTokenStore is an optional S3/MinIO-backed CredentialStore, selected
// via config.Storage.Backend == "object", for operators who keep credential
// records in object storage rather than local disk (e.g. ephemeral
// container filesystems).
type ObjectTokenStore struct {
	client *minio.Client
	bucket string
}

// NewObjectTokenStore connects to an S3-compatible endpoint and ensures the
// bucket exists.
func NewObjectTokenStore(endpoint, accessKey, secretKey, bucket string, useTLS bool) (*ObjectTokenStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useTLS,
	})
	if err != nil {
		return nil, apierror.Storage(err, "failed to create object store client")
	}
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, apierror.Storage(err, "failed to check object store bucket %s", bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apierror.Storage(err, "failed to create object store bucket %s", bucket)
		}
	}
	return &ObjectTokenStore{client: client, bucket: bucket}, nil
}

func (o *ObjectTokenStore) objectName(id string) string { return "credentials/" + SanitizeID(id) + ".json" }

func (o *ObjectTokenStore) List() ([]*Credential, error) {
	ctx := context.Background()
	var out []*Credential
	for obj := range o.client.ListObjects(ctx, o.bucket, minio.ListObjectsOptions{Prefix: "credentials/", Recursive: true}) {
		if obj.Err != nil {
			return nil, apierror.Storage(obj.Err, "failed to list object store credentials")
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		c, err := o.getObject(ctx, obj.Key)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (o *ObjectTokenStore) getObject(ctx context.Context, key string) (*Credential, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, err
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (o *ObjectTokenStore) Get(id string) (*Credential, error) {
	c, err := o.getObject(context.Background(), o.objectName(id))
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, apierror.Storage(err, "failed to load object store credential %s", id)
	}
	return c, nil
}

func (o *ObjectTokenStore) GetByProvider(p Provider) ([]*Credential, error) {
	all, err := o.List()
	if err != nil {
		return nil, err
	}
	var out []*Credential
	for _, c := range all {
		if c.Provider == p {
			out = append(out, c)
		}
	}
	return out, nil
}

func (o *ObjectTokenStore) Save(c *Credential) error {
	if c.SchemaVersion == 0 {
		c.SchemaVersion = CurrentSchemaVersion
	}
	data, err := json.Marshal(c)
	if err != nil {
		return apierror.Storage(err, "failed to marshal credential %s", c.ID)
	}
	_, err = o.client.PutObject(context.Background(), o.bucket, o.objectName(c.ID), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return apierror.Storage(err, "failed to store credential %s", c.ID)
	}
	return nil
}

func (o *ObjectTokenStore) Delete(id string) error {
	err := o.client.RemoveObject(context.Background(), o.bucket, o.objectName(id), minio.RemoveObjectOptions{})
	if err != nil {
		return apierror.Storage(err, "failed to delete credential %s", id)
	}
	return nil
}

func (o *ObjectTokenStore) DeleteByProvider(p Provider) (int, error) {
	creds, err := o.GetByProvider(p)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range creds {
		if err := o.Delete(c.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
