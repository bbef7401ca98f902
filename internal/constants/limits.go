package constants

const (
	MaxJSONBodyBytes = 64 << 10
	// Non-file multipart fields are held in memory up to this size.
	MultipartMemoryBytes = 1 << 20
	// Headroom on top of the payload limit for the other multipart fields.
	MultipartOverheadBytes = 1 << 20
)
