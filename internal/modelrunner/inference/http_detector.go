package inference

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/mumuon/modelrunner/internal/modelrunner/common"
)

// DefaultDetectorTimeout is the bounded per-call timeout; an exceeded
// timeout counts as a tile failure, not a region failure.
const DefaultDetectorTimeout = 60 * time.Second

// HTTPDetector posts tile bytes to a configured inference endpoint and
// decodes the response body as a GeoJSON FeatureCollection. Connection
// reuse is handled by the shared http.Client's transport, matching the
// tuned-transport idiom the teacher uses for its own outbound HTTP and S3
// clients.
type HTTPDetector struct {
	errorCounter

	endpoint string
	name     string
	client   *http.Client
	logger   *slog.Logger
}

// NewHTTPDetector builds a detector posting to endpoint. A nil client uses a
// client configured with DefaultDetectorTimeout and a transport that reuses
// connections per host, the same shape as the teacher's tuned S3 transport.
func NewHTTPDetector(name, endpoint string, client *http.Client, logger *slog.Logger) *HTTPDetector {
	if client == nil {
		client = &http.Client{
			Timeout: DefaultDetectorTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 50,
			},
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPDetector{endpoint: endpoint, name: name, client: client, logger: logger}
}

func (d *HTTPDetector) Name() string { return d.name }

func (d *HTTPDetector) Mode() common.ModelInvokeMode { return common.InvokeModeHTTPEndpoint }

// FindFeatures posts tileBytes to the endpoint and decodes the response as a
// FeatureCollection. A transport error (including an unreachable
// endpoint or a timeout), a 5xx response, or an unreadable or malformed
// body increments error_count and returns an empty collection rather than
// raising. The request is sent once; it is not retried.
func (d *HTTPDetector) FindFeatures(ctx context.Context, tileBytes []byte) *geojson.FeatureCollection {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(tileBytes))
	if err != nil {
		d.logger.Error("detector request construction failed", "detector", d.name, "error", err)
		d.incrementError()
		return emptyFeatureCollection()
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("detector call failed", "detector", d.name, "error", err)
		d.incrementError()
		return emptyFeatureCollection()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		d.logger.Warn("detector endpoint error", "detector", d.name, "status", resp.StatusCode)
		d.incrementError()
		return emptyFeatureCollection()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		d.logger.Warn("detector response read failed", "detector", d.name, "error", err)
		d.incrementError()
		return emptyFeatureCollection()
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		d.logger.Warn("detector response decode failed", "detector", d.name, "error", err)
		d.incrementError()
		return emptyFeatureCollection()
	}
	return fc
}
