package openai

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common"
	"github.com/songquanpeng/llm-gateway/common/render"
	"github.com/songquanpeng/llm-gateway/relay/meta"
	"github.com/songquanpeng/llm-gateway/relay/model"
)

const (
	dataPrefix = "data: "
	done       = "[DONE]"
)

// StreamHandler relays an upstream SSE stream to the client, reframing each
// chunk: the first (role) frame and the stop frame are normalized, content
// frames pass through, and the trailing usage frame closes the stream. The
// outbound model field always carries the client-facing model name.
//
// The returned usage is nil when the upstream closed without a usage frame;
// callers skip accounting in that case.
func StreamHandler(c *gin.Context, resp *http.Response, m *meta.Meta) (errResp *model.ErrorWithStatusCode, usage *model.Usage, responseText string) {
	logger := gmw.GetLogger(c)
	defer func() {
		// A broken chunk must not take the process down with it.
		if r := recover(); r != nil {
			logger.Error("stream transformer panicked", zap.Any("panic", r))
			errResp = ErrorWrapper(nil, "stream_panic", http.StatusInternalServerError)
		}
	}()
	defer func() { _ = resp.Body.Close() }()

	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 256*1024)
	scanner.Buffer(buf, 1024*1024)
	scanner.Split(bufio.ScanLines)

	common.SetEventStreamHeaders(c)
	var sb strings.Builder
	doneRendered := false

	for scanner.Scan() {
		if c.Request.Context().Err() != nil {
			// Client went away; stop pulling from the upstream.
			return nil, usage, sb.String()
		}

		data := strings.TrimSpace(scanner.Text())
		if data == "" {
			continue
		}
		data = strings.TrimSpace(strings.TrimPrefix(data, dataPrefix))
		if data == done {
			render.Done(c)
			doneRendered = true
			break
		}

		var chunk ChatCompletionsStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Warn("skip malformed stream chunk",
				zap.String("data", data), zap.Error(err))
			render.ObjectData(c, ErrorResponse{Error: model.Error{
				Message: "upstream sent a malformed stream chunk",
				Type:    "upstream_error",
				Code:    "bad_stream_chunk",
			}})
			continue
		}

		chunk.Model = m.OriginModelName

		switch {
		case chunk.Usage != nil && len(chunk.Choices) == 0:
			// Final frame: pass the usage through, close the stream, and hand
			// the numbers back for consume/telemetry.
			usage = chunk.Usage
			renderChunk(c, logger, &chunk)
			render.Done(c)
			doneRendered = true
			return nil, usage, sb.String()

		case len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Role != "":
			for i := range chunk.Choices {
				delta := chunk.Choices[i].Delta
				chunk.Choices[i].Delta = model.Message{
					Role:    delta.Role,
					Content: delta.Content,
				}
				chunk.Choices[i].FinishReason = nil
			}

		case len(chunk.Choices) > 0 &&
			chunk.Choices[0].FinishReason != nil &&
			*chunk.Choices[0].FinishReason == "stop":
			for i := range chunk.Choices {
				chunk.Choices[i].Delta = model.Message{Content: ""}
			}
			// Keep reading: the usage frame follows.

		default:
			for _, choice := range chunk.Choices {
				sb.WriteString(choice.Delta.StringContent())
			}
			if chunk.Usage != nil {
				// Some upstreams attach usage to the last content frame
				// instead of a dedicated one.
				usage = chunk.Usage
			}
		}

		renderChunk(c, logger, &chunk)
	}

	if err := scanner.Err(); err != nil && c.Request.Context().Err() == nil {
		logger.Warn("upstream stream read error", zap.Error(err))
	}
	if !doneRendered && c.Request.Context().Err() == nil {
		render.Done(c)
	}
	return nil, usage, sb.String()
}

func renderChunk(c *gin.Context, logger glog.Logger, chunk *ChatCompletionsStreamResponse) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		logger.Error("marshal stream chunk", zap.Error(err))
		return
	}
	render.StringData(c, string(payload))
}

// Handler relays a non-stream chat response: decode (tolerating the upstream's
// occasional double-encoding), rewrite the model name, and re-encode. All
// choices are forwarded, including n>1 responses.
func Handler(c *gin.Context, resp *http.Response, m *meta.Meta) (*model.ErrorWithStatusCode, *model.Usage) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrorWrapper(err, "UPSTREAM_TRANSPORT", http.StatusInternalServerError), nil
	}

	var textResponse TextResponse
	if err = json.Unmarshal(normalizeBody(body), &textResponse); err != nil {
		return ErrorWrapper(err, "UPSTREAM_DECODE", http.StatusInternalServerError), nil
	}

	textResponse.Model = m.OriginModelName
	if textResponse.Usage.TotalTokens == 0 {
		// Upstream omitted usage; reconstruct it from the text.
		completionTokens := 0
		for _, choice := range textResponse.Choices {
			completionTokens += CountTokenText(choice.Message.StringContent(), m.UpstreamModelName)
		}
		textResponse.Usage = model.Usage{
			PromptTokens:     m.PromptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      m.PromptTokens + completionTokens,
		}
	}

	c.JSON(resp.StatusCode, textResponse)
	return nil, &textResponse.Usage
}

// EmbeddingHandler relays a non-stream embeddings response with the model
// name rewritten.
func EmbeddingHandler(c *gin.Context, resp *http.Response, m *meta.Meta) (*model.ErrorWithStatusCode, *model.Usage) {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrorWrapper(err, "UPSTREAM_TRANSPORT", http.StatusInternalServerError), nil
	}

	var embeddingResponse EmbeddingResponse
	if err = json.Unmarshal(normalizeBody(body), &embeddingResponse); err != nil {
		return ErrorWrapper(err, "UPSTREAM_DECODE", http.StatusInternalServerError), nil
	}

	embeddingResponse.Model = m.OriginModelName
	c.JSON(resp.StatusCode, embeddingResponse)
	return nil, &embeddingResponse.Usage
}

// normalizeBody undoes the upstream's occasional double encoding: a JSON body
// wrapped in quotes with `\"` and `\\` escapes inside.
func normalizeBody(body []byte) []byte {
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) < 2 || trimmed[0] != '"' || trimmed[len(trimmed)-1] != '"' {
		return body
	}
	inner := trimmed[1 : len(trimmed)-1]
	inner = strings.ReplaceAll(inner, `\"`, `"`)
	inner = strings.ReplaceAll(inner, `\\`, `\`)
	return []byte(inner)
}
