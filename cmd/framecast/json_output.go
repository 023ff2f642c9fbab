package main

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeRawJSON re-indents an encoded response body onto stdout.
func writeRawJSON(cmd *cobra.Command, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("format response: %w", err)
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

// emitFailure prints a failed reply under --json and returns it as an error
// either way, so the exit status reflects the failure.
func (c *commandContext) emitFailure(cmd *cobra.Command, r reply) error {
	if c.jsonOutput() {
		if err := writeRawJSON(cmd, r.Body); err != nil {
			return err
		}
	}
	return r.err()
}
