//go:build !govips || !cgo

package raster

func Startup() error {
	return nil
}

func Shutdown() {}

func newDecoder() Decoder {
	return stdlibDecoder{}
}
