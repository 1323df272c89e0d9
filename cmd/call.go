// File: cmd/call.go
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/webpilot/api/schemas"
	"github.com/xkilldash9x/webpilot/internal/socket"
)

func newCallCmd(a *app) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "call <command> [payload]",
		Short: "Send one host command to a running server",
		Long: `Sends one command over the local socket and prints the response envelope.
The payload is JSON. Anything that does not parse as JSON is sent as a string,
so "webpilot call get_dom settings" addresses the settings window.`,
		Example: `  webpilot call ping
  webpilot call get_dom '{"window_label":"main","format":"markdown"}'
  webpilot call send_text_to_element '{"selector_type":"id","selector_value":"q","text":"hello"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := schemas.CommandRequest{Command: args[0], RequestID: uuid.NewString()}
			if len(args) == 2 {
				req.Payload = payloadArg(args[1])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runCall(ctx, a.cfg.Socket().Path, req, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "how long to wait for the response")
	cmd.Flags().String("socket", "", "path of the command socket")
	a.bindFlag(cmd, "socket.path", "socket")
	return cmd
}

// payloadArg passes JSON through and quotes anything else.
func payloadArg(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

// runCall prints the indented envelope. A failed envelope is also an error,
// so scripts can rely on the exit status.
func runCall(ctx context.Context, path string, req schemas.CommandRequest, out io.Writer) error {
	client, err := socket.Dial(ctx, path)
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Call(ctx, req)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	pretty.WriteByte('\n')
	if _, err := pretty.WriteTo(out); err != nil {
		return err
	}

	if !resp.Success {
		return fmt.Errorf("%s failed: %s", req.Command, resp.Error)
	}
	return nil
}
