package lode

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// PutFile stores a sidecar file (such as the session report) next to the
// session's partitions, outside the dataset snapshots.
func (c *Client) PutFile(ctx context.Context, filename string, data []byte) error {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("invalid sidecar filename %q", filename)
	}
	store, err := c.getOrCreateStore()
	if err != nil {
		return WrapInitError(err, c.config.Dataset)
	}
	path := c.FilePath(filename)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, path)
	}
	return nil
}

// FilePath returns the store path of a sidecar file.
// Format: datasets/<dataset>/partitions/day=<d>/session_id=<s>/files/<filename>
func (c *Client) FilePath(filename string) string {
	return fmt.Sprintf("datasets/%s/partitions/day=%s/session_id=%s/files/%s",
		c.config.Dataset, c.config.Day, c.config.SessionID, filename)
}
