package inference

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// SMEndpointInvoker is the managed-endpoint transport SMDetector delegates
// to. The concrete client (a managed inference service SDK) is an external
// collaborator; this interface is the seam.
type SMEndpointInvoker interface {
	Invoke(ctx context.Context, endpointName string, tileBytes []byte, creds any) ([]byte, error)
}

// SMDetector dispatches to a managed inference endpoint, optionally using
// credentials refreshed from an assumed execution role.
type SMDetector struct {
	errorCounter

	name          string
	endpointName  string
	invoker       SMEndpointInvoker
	credentials   *CredentialCache
	executionRole string
	logger        *slog.Logger
}

func NewSMDetector(name, endpointName string, invoker SMEndpointInvoker, credCache *CredentialCache, executionRole string, logger *slog.Logger) *SMDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMDetector{
		name:          name,
		endpointName:  endpointName,
		invoker:       invoker,
		credentials:   credCache,
		executionRole: executionRole,
		logger:        logger,
	}
}

func (d *SMDetector) Name() string { return d.name }

func (d *SMDetector) Mode() common.ModelInvokeMode { return common.InvokeModeSMEndpoint }

// FindFeatures invokes the managed endpoint. Like HTTPDetector, it never
// raises to the caller: invocation failures increment error_count and
// return an empty collection. A credential refresh failure is handled the
// same way: it is logged, counted in error_count, and the call returns an
// empty collection; it does not fail the job.
func (d *SMDetector) FindFeatures(ctx context.Context, tileBytes []byte) *geojson.FeatureCollection {
	var creds any
	if d.executionRole != "" && d.credentials != nil {
		cached, err := d.credentials.Get(ctx, d.executionRole)
		if err != nil {
			d.logger.Error("credential refresh failed", "detector", d.name, "error", err)
			d.incrementError()
			return emptyFeatureCollection()
		}
		creds = cached
	}

	body, err := d.invoker.Invoke(ctx, d.endpointName, tileBytes, creds)
	if err != nil {
		d.logger.Warn("managed endpoint invocation failed", "detector", d.name, "error", err)
		d.incrementError()
		return emptyFeatureCollection()
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		d.logger.Warn("managed endpoint response decode failed", "detector", d.name, "error", err)
		d.incrementError()
		return emptyFeatureCollection()
	}
	return fc
}
