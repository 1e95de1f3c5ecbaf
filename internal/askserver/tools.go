package askserver

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_vidqa/internal/engine"
	"github.com/anatolykoptev/go_vidqa/internal/toolutil"
)

// RegisterTools registers the ask_video tool on the given MCP server.
func RegisterTools(server *mcp.Server, asker Asker) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ask_video",
		Description: "Answer a question about a YouTube video using only what is said in it. Fetches the video's captions (any language), translates them to English, retrieves the most relevant passages and answers from them. Replies \"" + engine.RefusalAnswer + "\" when the video does not cover the question.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input engine.AskInput) (*mcp.CallToolResult, engine.AskOutput, error) {
		in, err := toolutil.NormalizeAskInput(input)
		if err != nil {
			return nil, engine.AskOutput{}, err
		}
		res, err := asker.Ask(ctx, in.VideoURL, in.Question)
		if err != nil {
			_, msg := toolutil.Describe(err)
			return nil, engine.AskOutput{}, errors.New(msg)
		}
		return nil, engine.AskOutput{Response: res.Answer}, nil
	})
}
