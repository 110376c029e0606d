package policy_test

import (
	"github.com/pithecene-io/kdp/types"
)

func command(seq int64) *types.TraceRecord {
	return &types.TraceRecord{
		SessionID: "s-1",
		Seq:       seq,
		Direction: types.DirectionFromDebugger,
		ID:        int32(seq),
		CmdSet:    1,
		Cmd:       1,
	}
}

func reply(seq int64) *types.TraceRecord {
	return &types.TraceRecord{
		SessionID: "s-1",
		Seq:       seq,
		Direction: types.DirectionToDebugger,
		ID:        int32(seq),
		Flags:     0x80,
	}
}

// event is a Composite event, the only droppable kind.
func event(seq int64) *types.TraceRecord {
	return &types.TraceRecord{
		SessionID: "s-1",
		Seq:       seq,
		Direction: types.DirectionFromVM,
		ID:        int32(seq),
		CmdSet:    64,
		Cmd:       100,
		Payload:   []byte{2, 0, 0, 0, 0},
	}
}

func seqs(recs []*types.TraceRecord) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.Seq
	}
	return out
}
