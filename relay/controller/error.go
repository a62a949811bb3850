package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/songquanpeng/llm-gateway/relay/model"
)

type generalErrorResponse struct {
	Error   model.Error `json:"error"`
	Message string      `json:"message"`
	Msg     string      `json:"msg"`
	Err     string      `json:"err"`
}

func (e generalErrorResponse) toMessage() string {
	if e.Error.Message != "" {
		return e.Error.Message
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Msg != "" {
		return e.Msg
	}
	return e.Err
}

// RelayErrorHandler turns a non-2xx upstream response into the unified error
// model, keeping the upstream's own message when it speaks a known envelope.
func RelayErrorHandler(resp *http.Response) *model.ErrorWithStatusCode {
	if resp == nil {
		return &model.ErrorWithStatusCode{
			StatusCode: http.StatusInternalServerError,
			Error: model.Error{
				Message: "upstream response is nil",
				Type:    "upstream_error",
				Code:    "bad_response",
			},
		}
	}

	wrapped := &model.ErrorWithStatusCode{
		StatusCode: resp.StatusCode,
		Error: model.Error{
			Type:  "upstream_error",
			Code:  "UPSTREAM_STATUS",
			Param: strconv.Itoa(resp.StatusCode),
		},
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return wrapped
	}
	_ = resp.Body.Close()

	var parsed generalErrorResponse
	if err = json.Unmarshal(body, &parsed); err != nil {
		wrapped.Error.Message = string(body)
	} else if parsed.Error.Message != "" {
		wrapped.Error = parsed.Error
	} else {
		wrapped.Error.Message = parsed.toMessage()
	}

	if wrapped.Error.Message == "" {
		wrapped.Error.Message = fmt.Sprintf("bad response status code %d", resp.StatusCode)
	}
	return wrapped
}
