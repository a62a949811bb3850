package render

import (
	"encoding/json"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/gin-gonic/gin"

	"github.com/songquanpeng/llm-gateway/common"
)

// StringData writes one SSE data frame and flushes it. The "data: " prefix is
// normalized so callers may pass either the raw payload or a full line.
func StringData(c *gin.Context, str string) {
	str = strings.TrimPrefix(str, "data: ")
	str = strings.TrimSuffix(str, "\r")
	c.Render(-1, common.CustomEvent{Data: "data: " + str})
	c.Writer.Flush()
}

// ObjectData marshals object into a single SSE data frame.
func ObjectData(c *gin.Context, object any) error {
	jsonData, err := json.Marshal(object)
	if err != nil {
		return errors.Wrap(err, "marshal SSE object")
	}
	StringData(c, string(jsonData))
	return nil
}

// Done emits the terminal [DONE] frame.
func Done(c *gin.Context) {
	StringData(c, "[DONE]")
}
