package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"enceladus/pkg/telemetry"

	"github.com/valyala/fasthttp"
)

func PathParam(ctx *fasthttp.RequestCtx, param string) string {
	if v := ctx.UserValue(param); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return ""
}

// PathID parses a non-negative integer path parameter. On failure it
// writes a 400 and returns false.
func PathID(ctx *fasthttp.RequestCtx, param string) (int64, bool) {
	raw := PathParam(ctx, param)
	if raw == "" {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, param+" missing")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid "+param)
		return 0, false
	}
	return id, true
}

// SetupHandler starts the trace for op and sets the JSON content type.
func SetupHandler(ctx *fasthttp.RequestCtx, op string) *telemetry.Trace {
	tr := telemetry.Track("api." + op)
	ctx.Response.Header.Set("Content-Type", "application/json")
	return tr
}

// DecodeBody decodes the request body into v, tolerating unknown fields.
func DecodeBody(ctx *fasthttp.RequestCtx, v any) bool {
	if err := json.Unmarshal(ctx.PostBody(), v); err != nil {
		WriteJSONError(ctx, fasthttp.StatusBadRequest, "invalid json body: "+err.Error())
		return false
	}
	return true
}

// DecodeStrict decodes exactly one JSON value into v and rejects unknown
// fields and trailing data.
func DecodeStrict(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("unexpected data after json value")
	}
	return nil
}
