package openai

import (
	"github.com/songquanpeng/llm-gateway/relay/model"
)

func ErrorWrapper(err error, code string, statusCode int) *model.ErrorWithStatusCode {
	message := code
	if err != nil {
		message = err.Error()
	}
	return &model.ErrorWithStatusCode{
		Error: model.Error{
			Message:  message,
			Type:     "llm_gateway_error",
			Code:     code,
			RawError: err,
		},
		StatusCode: statusCode,
	}
}
