package artifact

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appErr "github.com/voltade/platform-engine/pkg/errors"
)

// PresignTTL bounds every URL the gateway issues. Expiry past this window is
// enforced by the object store, not by this package.
const PresignTTL = time.Hour

// Kind selects which object of a build the gateway addresses.
type Kind string

const (
	KindSource   Kind = "source"
	KindArtifact Kind = "artifact"
)

// ContentType returns the upload content type the object store expects for k.
func (k Kind) ContentType() string {
	if k == KindSource {
		return "application/zip"
	}
	return "application/gzip"
}

// SourceKey derives the object key of an uploaded source bundle. The same
// inputs always derive the same key, so any holder of an AppBuild record can
// reconstruct the location without consulting this package's state.
func SourceKey(orgID, appSlug, buildID string) string {
	return fmt.Sprintf("source/%s/%s/%s.zip", orgID, appSlug, buildID)
}

// ArtifactKey derives the object key of a packaged build artifact.
func ArtifactKey(orgID, appSlug, buildID string) string {
	return fmt.Sprintf("builds/%s/%s/%s/artifact.tar.gz", orgID, appSlug, buildID)
}

// Key derives the object key for the given kind.
func Key(kind Kind, orgID, appSlug, buildID string) string {
	if kind == KindSource {
		return SourceKey(orgID, appSlug, buildID)
	}
	return ArtifactKey(orgID, appSlug, buildID)
}

// Gateway issues time-limited, single-method presigned URLs against one
// bucket of an S3-compatible store.
type Gateway interface {
	PresignUpload(ctx context.Context, kind Kind, orgID, appSlug, buildID string) (string, error)
	PresignDownload(ctx context.Context, kind Kind, orgID, appSlug, buildID string) (string, error)
	Bucket() string
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type gateway struct {
	client *minio.Client
	bucket string
}

// New constructs a Gateway over a MinIO/S3 endpoint. Presigning is a local
// signature computation; no request reaches the store until a URL is used.
func New(cfg Config) (Gateway, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "create object store client failed")
	}
	return &gateway{client: client, bucket: cfg.Bucket}, nil
}

func (g *gateway) Bucket() string { return g.bucket }

func (g *gateway) PresignUpload(ctx context.Context, kind Kind, orgID, appSlug, buildID string) (string, error) {
	key := Key(kind, orgID, appSlug, buildID)
	u, err := g.client.PresignHeader(ctx, http.MethodPut, g.bucket, key, PresignTTL, url.Values{}, http.Header{
		"Content-Type": []string{kind.ContentType()},
	})
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeUnavailable, "presign upload failed")
	}
	return u.String(), nil
}

func (g *gateway) PresignDownload(ctx context.Context, kind Kind, orgID, appSlug, buildID string) (string, error) {
	key := Key(kind, orgID, appSlug, buildID)
	u, err := g.client.PresignedGetObject(ctx, g.bucket, key, PresignTTL, url.Values{})
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeUnavailable, "presign download failed")
	}
	return u.String(), nil
}
