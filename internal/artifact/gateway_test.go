package artifact

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func testGateway(t *testing.T) Gateway {
	t.Helper()
	g, err := New(Config{
		Endpoint:  "localhost:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "platform",
		Region:    "ap-southeast-1",
		UseSSL:    false,
	})
	require.NoError(t, err)
	return g
}

func TestKeysAreDeterministic(t *testing.T) {
	src := SourceKey("org-1", "crm", "build-1")
	require.Equal(t, "source/org-1/crm/build-1.zip", src)
	require.Equal(t, src, Key(KindSource, "org-1", "crm", "build-1"))

	art := ArtifactKey("org-1", "crm", "build-1")
	require.Equal(t, "builds/org-1/crm/build-1/artifact.tar.gz", art)
	require.Equal(t, art, Key(KindArtifact, "org-1", "crm", "build-1"))
}

func TestKindContentType(t *testing.T) {
	require.Equal(t, "application/zip", KindSource.ContentType())
	require.Equal(t, "application/gzip", KindArtifact.ContentType())
}

func TestPresignUpload(t *testing.T) {
	g := testGateway(t)

	raw, err := g.PresignUpload(context.Background(), KindSource, "org-1", "crm", "build-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "localhost:9000", u.Host)
	require.Equal(t, "/platform/source/org-1/crm/build-1.zip", u.Path)
	require.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	require.Equal(t, "3600", u.Query().Get("X-Amz-Expires"))
}

func TestPresignDownload(t *testing.T) {
	g := testGateway(t)

	raw, err := g.PresignDownload(context.Background(), KindArtifact, "org-1", "crm", "build-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/platform/builds/org-1/crm/build-1/artifact.tar.gz", u.Path)
	require.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
}
