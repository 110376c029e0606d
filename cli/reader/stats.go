package reader

import (
	"cmp"
	"slices"

	"github.com/pithecene-io/kdp/jdwp"
	"github.com/pithecene-io/kdp/types"
)

// directionOrder is the display order of the proxy directions.
var directionOrder = []types.Direction{
	types.DirectionFromDebugger,
	types.DirectionToVM,
	types.DirectionFromVM,
	types.DirectionToDebugger,
}

// Dump converts records to display rows.
func Dump(recs []*types.TraceRecord) []TraceRow {
	rows := make([]TraceRow, 0, len(recs))
	for _, rec := range recs {
		row := TraceRow{
			Seq:       rec.Seq,
			Ts:        rec.Ts,
			Direction: string(rec.Direction),
			Kind:      recordKind(rec),
			ID:        rec.ID,
			ErrorCode: rec.ErrorCode,
			Bytes:     len(rec.Payload),
		}
		if !rec.IsReply() {
			row.Command = jdwp.CommandName(rec.CmdSet, rec.Cmd)
		}
		rows = append(rows, row)
	}
	return rows
}

// Stats aggregates records per direction and per command.
// Reply records carry no command and count only toward totals.
func Stats(recs []*types.TraceRecord) *TraceStats {
	s := &TraceStats{
		ByDirection: []DirectionStats{},
		ByCommand:   []CommandStats{},
	}
	sessions := make(map[string]struct{})
	dirs := make(map[types.Direction]*DirectionStats)
	cmds := make(map[[2]uint8]*CommandStats)

	for _, rec := range recs {
		size := int64(len(rec.Payload))
		s.Records++
		s.Bytes += size
		sessions[rec.SessionID] = struct{}{}
		if s.FirstTs == "" || rec.Ts < s.FirstTs {
			s.FirstTs = rec.Ts
		}
		if rec.Ts > s.LastTs {
			s.LastTs = rec.Ts
		}

		d, ok := dirs[rec.Direction]
		if !ok {
			d = &DirectionStats{Direction: string(rec.Direction)}
			dirs[rec.Direction] = d
		}
		d.Records++
		d.Bytes += size

		if rec.IsReply() {
			s.Replies++
			if rec.ErrorCode != 0 {
				s.ErrorReplies++
			}
			continue
		}
		s.Commands++
		if rec.IsEvent() {
			s.Events++
		}
		key := [2]uint8{rec.CmdSet, rec.Cmd}
		c, ok := cmds[key]
		if !ok {
			c = &CommandStats{CmdSet: rec.CmdSet, Cmd: rec.Cmd, Command: jdwp.CommandName(rec.CmdSet, rec.Cmd)}
			cmds[key] = c
		}
		c.Count++
		c.Bytes += size
	}
	s.Sessions = len(sessions)

	for _, dir := range directionOrder {
		if d, ok := dirs[dir]; ok {
			s.ByDirection = append(s.ByDirection, *d)
		}
	}
	for _, c := range cmds {
		s.ByCommand = append(s.ByCommand, *c)
	}
	slices.SortFunc(s.ByCommand, func(a, b CommandStats) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}
		if n := cmp.Compare(a.CmdSet, b.CmdSet); n != 0 {
			return n
		}
		return cmp.Compare(a.Cmd, b.Cmd)
	})
	return s
}

func recordKind(rec *types.TraceRecord) string {
	switch {
	case rec.IsReply():
		return "reply"
	case rec.IsEvent():
		return "event"
	default:
		return "command"
	}
}
