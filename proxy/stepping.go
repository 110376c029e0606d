package proxy

import "github.com/pithecene-io/kdp/classfile"

// lineBlock is a run of adjacent line table entries for one source line,
// covering code indices [start, end).
type lineBlock struct {
	line       uint16
	start, end int64
}

func lineBlocks(m *classfile.Method) []lineBlock {
	var blocks []lineBlock
	for _, ln := range m.LineNumbers {
		pc := int64(ln.StartPC)
		if n := len(blocks); n > 0 {
			blocks[n-1].end = pc
			if blocks[n-1].line == ln.Line {
				continue
			}
		}
		blocks = append(blocks, lineBlock{line: ln.Line, start: pc})
	}
	if n := len(blocks); n > 0 {
		blocks[n-1].end = m.CodeEnd()
	}
	return blocks
}

// SteppingInfo computes the stepping targets for offset in m: the start of
// the next line block, and the first other block compiled for the same
// source line (a loop condition placed after the body, for example). Absent
// targets are -1. ok is false when m has no line table or offset is outside
// the code.
func SteppingInfo(m *classfile.Method, offset uint64) (nextLineStart, dupStart, dupEnd int64, ok bool) {
	blocks := lineBlocks(m)
	if len(blocks) == 0 || offset >= uint64(m.CodeEnd()) {
		return -1, -1, -1, false
	}

	cur := -1
	for i, b := range blocks {
		if int64(offset) >= b.start && int64(offset) < b.end {
			cur = i
			break
		}
	}
	if cur < 0 {
		return -1, -1, -1, false
	}

	nextLineStart, dupStart, dupEnd = -1, -1, -1
	if cur+1 < len(blocks) {
		nextLineStart = blocks[cur+1].start
	}
	for i, b := range blocks {
		if i != cur && b.line == blocks[cur].line {
			dupStart, dupEnd = b.start, b.end-1
			break
		}
	}
	return nextLineStart, dupStart, dupEnd, true
}
