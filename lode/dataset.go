package lode

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/kdp/types"
)

// ErrNoSummaryFound is returned when a session has no summary record.
var ErrNoSummaryFound = errors.New("no session summary found")

// NewReadDataset opens dataset for reading with the write-path layout.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// ReadSession returns the packet records of one session ordered by seq.
// Records seen in more than one snapshot are returned once.
func ReadSession(ctx context.Context, ds lode.Dataset, sessionID string) ([]*types.TraceRecord, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	bySeq := make(map[int64]*types.TraceRecord)
	for _, snap := range snapshots {
		if !snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindPacket || toString(m["session_id"]) != sessionID {
				continue
			}
			rec, err := fromPacketRecordMap(m)
			if err != nil {
				return nil, fmt.Errorf("snapshot %s: %w", snap.ID, err)
			}
			bySeq[rec.Seq] = rec
		}
	}

	recs := make([]*types.TraceRecord, 0, len(bySeq))
	for _, rec := range bySeq {
		recs = append(recs, rec)
	}
	slices.SortFunc(recs, func(a, b *types.TraceRecord) int { return cmp.Compare(a.Seq, b.Seq) })
	return recs, nil
}

// QueryLatestSummary returns the newest summary record, optionally for one
// session.
func QueryLatestSummary(ctx context.Context, ds lode.Dataset, sessionID string) (map[string]any, error) {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return nil, WrapReadError(err, "snapshots")
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "direction", DirectionSummary) ||
			!snapshotMatchesFilter(snap, "session_id", sessionID) {
			continue
		}
		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return nil, WrapReadError(err, fmt.Sprintf("snapshot/%s", snap.ID))
		}
		// manifest paths are a coarse filter; record fields decide
		for _, item := range data {
			m, ok := item.(map[string]any)
			if !ok || m["record_kind"] != RecordKindSummary {
				continue
			}
			if sessionID != "" && toString(m["session_id"]) != sessionID {
				continue
			}
			return m, nil
		}
	}
	return nil, ErrNoSummaryFound
}

func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue matches a whole key=value path segment, so
// session_id=s-1 does not match session_id=s-10.
func matchesPartitionValue(path, key, value string) bool {
	segment := key + "=" + value
	for part := range strings.SplitSeq(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
