package lode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/kdp/policy"
	"github.com/pithecene-io/kdp/types"
)

// DefaultDataset is the dataset id used when none is configured.
const DefaultDataset = "kdp"

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"day", "session_id", "direction"}

// Config identifies where one session's records land.
type Config struct {
	// Dataset is the Lode dataset id.
	Dataset string
	// Day is the partition day (DeriveDay of the session start).
	Day string
	// SessionID is the session partition.
	SessionID string
}

// Validate checks that every partition key is set.
func (c Config) Validate() error {
	switch {
	case c.Dataset == "":
		return errors.New("lode dataset is required")
	case c.Day == "":
		return errors.New("lode day partition is required")
	case c.SessionID == "":
		return errors.New("lode session_id partition is required")
	}
	return nil
}

func newDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// NewFSFactory returns a filesystem store factory rooted at root,
// creating the directory if needed.
func NewFSFactory(root string) (lode.StoreFactory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, WrapInitError(err, root)
	}
	return lode.NewFSFactory(root), nil
}

// Client writes one session's trace to a Lode dataset. It is a policy.Sink.
type Client struct {
	dataset      lode.Dataset
	config       Config
	storeFactory lode.StoreFactory

	mu sync.Mutex

	storeOnce sync.Once
	store     lode.Store
	storeErr  error
}

// NewClient creates a client for one session over factory.
// Use lode.NewMemoryFactory() in tests.
func NewClient(cfg Config, factory lode.StoreFactory) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return &Client{dataset: ds, config: cfg, storeFactory: factory}, nil
}

// Config returns the client's partition config.
func (c *Client) Config() Config {
	return c.config
}

// WriteRecords writes recs as one Lode snapshot, preserving order.
func (c *Client) WriteRecords(ctx context.Context, recs []*types.TraceRecord) error {
	if len(recs) == 0 {
		return nil
	}
	records := make([]any, 0, len(recs))
	for _, rec := range recs {
		if rec.SessionID != c.config.SessionID {
			return fmt.Errorf("record seq %d belongs to session %q, client writes %q", rec.Seq, rec.SessionID, c.config.SessionID)
		}
		records = append(records, toPacketRecordMap(rec, c.config))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.datasetPath())
	}
	return nil
}

// WriteSummary writes the session summary record.
func (c *Client) WriteSummary(ctx context.Context, s SummaryRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.dataset.Write(ctx, []any{toSummaryRecordMap(s, c.config)}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.datasetPath())
	}
	return nil
}

// Close releases client resources. Lode datasets need no explicit close.
func (c *Client) Close() error {
	return nil
}

func (c *Client) datasetPath() string {
	return "datasets/" + c.config.Dataset
}

func (c *Client) getOrCreateStore() (lode.Store, error) {
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	return c.store, c.storeErr
}

var _ policy.Sink = (*Client)(nil)
