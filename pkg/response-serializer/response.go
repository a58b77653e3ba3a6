package serializer

import (
	"bufio"
	"bytes"
	"net/http"
)

// Snapshot returns the HTTP/1.1 wire form of the response for storage.
// The response body is consumed and then restored, so the response can
// still be sent to the client after snapshotting.
func Snapshot(res *http.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	bts := buf.Bytes()
	// set response body back
	restored, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(bts)), res.Request)
	if err != nil {
		return nil, err
	}
	res.Body = restored.Body
	return bts, nil
}

// ReadSnapshot converts a stored snapshot back to a http.Response.
func ReadSnapshot(b []byte) (*http.Response, error) {
	return http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
}
