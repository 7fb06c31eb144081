package upstream

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
)

// JSONResponse builds a synthetic 200 response for a mock round-tripper
func JSONResponse(req *http.Request, v interface{}) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, nil
}
