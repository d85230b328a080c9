package inference

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// FeatureDetectorFactory builds the Detector matching a request's
// model_invoke_mode, the tagged-variant dispatch the design notes call for
// instead of a class hierarchy.
type FeatureDetectorFactory struct {
	Endpoint      string
	EndpointMode  common.ModelInvokeMode
	HTTPClient    *http.Client
	SMInvoker     SMEndpointInvoker
	Credentials   *CredentialCache
	ExecutionRole string
	Logger        *slog.Logger
}

// Build returns the Detector implementing f.EndpointMode.
func (f *FeatureDetectorFactory) Build() (Detector, error) {
	switch f.EndpointMode {
	case common.InvokeModeHTTPEndpoint:
		return NewHTTPDetector(f.Endpoint, f.Endpoint, f.HTTPClient, f.Logger), nil
	case common.InvokeModeSMEndpoint:
		return NewSMDetector(f.Endpoint, f.Endpoint, f.SMInvoker, f.Credentials, f.ExecutionRole, f.Logger), nil
	default:
		return nil, &common.InvalidConfigError{Reason: fmt.Sprintf("unsupported model invoke mode: %s", f.EndpointMode)}
	}
}
