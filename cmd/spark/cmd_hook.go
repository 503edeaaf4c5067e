package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/outcome"
	"github.com/Reakted/vibeship-spark-intelligence-sub002/internal/pipeline"
)

// hookInput is the JSON object agent hook frameworks pass on stdin.
type hookInput struct {
	SessionID string                 `json:"session_id"`
	ToolName  string                 `json:"tool_name"`
	ToolInput map[string]interface{} `json:"tool_input"`
	TraceID   string                 `json:"trace_id"`
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Hook entry points called around agent tool use",
}

var hookPreToolCmd = &cobra.Command{
	Use:   "pre-tool",
	Short: "Evaluate a pre-tool event from stdin, print the advisory if any",
	Long: `Reads a hook event JSON object on stdin:

  {"session_id": "...", "tool_name": "Bash", "tool_input": {...}, "trace_id": "..."}

Prints the advisory text on stdout, or nothing. Always exits 0: a
failed advisory lookup must never break the agent's tool call.`,
	Run: func(cmd *cobra.Command, args []string) {
		var in hookInput
		data, err := io.ReadAll(os.Stdin)
		if err == nil {
			// A malformed event degrades to an empty input, not a failure.
			_ = json.Unmarshal(data, &in)
		}
		if in.ToolName == "" {
			return
		}

		p := newPipeline(effectClassifierOption()...)
		p.OnPreTool(cmd.Context(), in.SessionID, in.ToolName, in.ToolInput, in.TraceID)
	},
}

var hookAttributeCmd = &cobra.Command{
	Use:   "attribute",
	Short: "Attribute past emissions to later evidence and update source stats",
	Run: func(cmd *cobra.Command, args []string) {
		p := newPipeline(effectClassifierOption()...)
		res := p.Attribute(cmd.Context())
		fmt.Printf("examined=%d attributed=%d deferred=%d\n", res.Examined, res.Attributed, res.Deferred)
	},
}

// effectClassifierOption wires the optional Gemini-backed classifier
// when an API key is present. Absent key or client failure means
// heuristic-only evaluation.
func effectClassifierOption() []pipeline.Option {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil
	}
	client, err := outcome.NewGenAIClient(context.Background(), apiKey, cfg.Outcome.GenAIModel)
	if err != nil {
		return nil
	}
	return []pipeline.Option{pipeline.WithEffectClassifier(client)}
}

func init() {
	hookCmd.AddCommand(hookPreToolCmd, hookAttributeCmd)
}
