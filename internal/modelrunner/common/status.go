package common

// RequestStatus is the status a StatusMonitor derives from an item's
// counters and publishes on a transition.
type RequestStatus string

const (
	StatusSuccess    RequestStatus = "SUCCESS"
	StatusPartial    RequestStatus = "PARTIAL"
	StatusFailed     RequestStatus = "FAILED"
	StatusInProgress RequestStatus = "IN_PROGRESS"
)

// ModelInvokeMode tags how a Detector reaches the inference endpoint.
type ModelInvokeMode string

const (
	InvokeModeNone         ModelInvokeMode = "NONE"
	InvokeModeSMEndpoint   ModelInvokeMode = "SM_ENDPOINT"
	InvokeModeHTTPEndpoint ModelInvokeMode = "HTTP_ENDPOINT"
)

// TileFormat is the image encoding a tile is extracted in before dispatch.
type TileFormat string

const (
	TileFormatNITF  TileFormat = "NITF"
	TileFormatJPEG  TileFormat = "JPEG"
	TileFormatPNG   TileFormat = "PNG"
	TileFormatGTIFF TileFormat = "GTIFF"
)
