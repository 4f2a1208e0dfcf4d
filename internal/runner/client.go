package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	appErr "github.com/voltade/platform-engine/pkg/errors"
	"github.com/voltade/platform-engine/pkg/logger"
)

// Client pushes activation requests to tenant runtimes.
type Client interface {
	// Activate tells the (orgSlug, envSlug) runner to swap appSlug to buildID.
	// bearer is a runner-scoped signed token for that same pair.
	Activate(ctx context.Context, orgSlug, envSlug, appSlug, buildID, bearer string) error
}

// Routing derives runner base URLs. The derivation is pure: no service
// discovery round trip is performed.
type Routing struct {
	// Production switches to in-cluster service naming.
	Production bool
	// BaseDomain is the per-tenant routable domain outside the cluster.
	BaseDomain string
	// SvcDomain is the cluster service suffix, normally svc.cluster.local.
	SvcDomain string
}

// BaseURL computes the runner base URL for one (organization, environment).
func (r Routing) BaseURL(orgSlug, envSlug string) string {
	if r.Production {
		return fmt.Sprintf("http://runner.%s-%s.%s", orgSlug, envSlug, r.SvcDomain)
	}
	return fmt.Sprintf("http://%s-%s.%s", orgSlug, envSlug, r.BaseDomain)
}

type httpClient struct {
	routing Routing
	http    *http.Client
}

// NewClient builds the HTTP push client with a bounded request timeout.
func NewClient(routing Routing, timeout time.Duration) Client {
	return &httpClient{
		routing: routing,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) Activate(ctx context.Context, orgSlug, envSlug, appSlug, buildID, bearer string) error {
	u := fmt.Sprintf("%s/apps/update/%s", c.routing.BaseURL(orgSlug, envSlug), appSlug)

	body, err := json.Marshal(map[string]string{"buildId": buildID})
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "marshal activation request failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(body))
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "build activation request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "runner activation push failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logger.L().Warn("runner rejected activation",
			zap.String("url", u),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return appErr.New(appErr.CodeUnavailable, fmt.Sprintf("runner returned status %d", resp.StatusCode))
	}
	return nil
}
