package buildjob

import (
	"context"
	"time"

	"go.uber.org/zap"
	batchv1 "k8s.io/api/batch/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	appErr "github.com/voltade/platform-engine/pkg/errors"
	"github.com/voltade/platform-engine/pkg/logger"
)

// Submitter hands a synthesized job to the container-orchestration control
// plane.
type Submitter interface {
	Submit(ctx context.Context, job *batchv1.Job) error
}

// NewClientset builds a Kubernetes clientset: in-cluster service account in
// production, kubeconfig path otherwise.
func NewClientset(production bool, kubeconfig string) (kubernetes.Interface, error) {
	var cfg *rest.Config
	var err error
	if production {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "load kubernetes config failed")
	}
	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "create kubernetes client failed")
	}
	return clientset, nil
}

type k8sSubmitter struct {
	client  kubernetes.Interface
	timeout time.Duration
}

// NewSubmitter wraps a clientset with the bounded-timeout submission policy.
// A timed-out submission is surfaced to the caller, never retried here.
func NewSubmitter(client kubernetes.Interface, timeout time.Duration) Submitter {
	return &k8sSubmitter{client: client, timeout: timeout}
}

func (s *k8sSubmitter) Submit(ctx context.Context, job *batchv1.Job) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.BatchV1().Jobs(job.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		// The job name is deterministic per (app, build), so AlreadyExists
		// means a submission for this build is already running or done.
		if apierrors.IsAlreadyExists(err) {
			logger.L().Info("build job already submitted",
				zap.String("job", job.Name),
				zap.String("namespace", job.Namespace),
			)
			return nil
		}
		return appErr.Wrap(err, appErr.CodeUnavailable, "submit build job failed")
	}

	logger.L().Info("build job submitted",
		zap.String("job", job.Name),
		zap.String("namespace", job.Namespace),
	)
	return nil
}
