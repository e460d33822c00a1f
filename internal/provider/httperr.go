package provider

import (
	"fmt"
	"io"
	"net/http"
)

// StatusError formats a non-2xx upstream response into a message that
// embeds the HTTP status code so the Error Classifier (internal/upstreamerr)
// can tag it, and the provider tag so the error is traceable back to its
// source per the wrapping policy in spec §7.
func StatusError(tag Tag, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
	return fmt.Errorf("%s: unexpected status %d: %s", tag, resp.StatusCode, string(body))
}

// AppError formats an application-level error payload embedded in an
// otherwise-2xx response body (e.g. Alpha Vantage's {"Error Message": ...}
// or a provider's {"code": ..., "msg": ...} envelope).
func AppError(tag Tag, msg string) error {
	return fmt.Errorf("%s: %s", tag, msg)
}
