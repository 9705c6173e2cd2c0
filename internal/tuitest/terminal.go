package tuitest

import (
	"bytes"
	"io"
)

const (
	responderTail = 64
	responderCap  = 256
)

// query is a terminal capability probe the renderer may send on startup,
// paired with the answer a plain dark terminal would give.
type query struct {
	probe  []byte
	answer []byte
}

var terminalQueries = []query{
	{probe: []byte("\x1b[6n"), answer: []byte("\x1b[1;1R")},
	{probe: []byte("\x1b]10;?\x07"), answer: []byte("\x1b]10;rgb:cccc/cccc/cccc\x07")},
	{probe: []byte("\x1b]10;?\x1b\\"), answer: []byte("\x1b]10;rgb:cccc/cccc/cccc\x1b\\")},
	{probe: []byte("\x1b]11;?\x07"), answer: []byte("\x1b]11;rgb:0000/0000/0000\x07")},
	{probe: []byte("\x1b]11;?\x1b\\"), answer: []byte("\x1b]11;rgb:0000/0000/0000\x1b\\")},
}

// terminalResponder answers capability probes so programs that wait for a
// reply do not stall inside the pseudo terminal.
type terminalResponder struct {
	w       io.Writer
	pending []byte
}

func newTerminalResponder(w io.Writer) *terminalResponder {
	return &terminalResponder{w: w, pending: make([]byte, 0, responderCap)}
}

func (tr *terminalResponder) Process(chunk []byte) {
	tr.pending = append(tr.pending, chunk...)
	for tr.answerNext() {
	}
	// Probes can straddle reads, so a short tail survives trimming.
	if len(tr.pending) > responderCap {
		tr.pending = tr.pending[len(tr.pending)-responderTail:]
	}
}

// answerNext replies to the earliest probe in the buffer and drops
// everything up to it.
func (tr *terminalResponder) answerNext() bool {
	first, end := -1, 0
	var answer []byte
	for _, q := range terminalQueries {
		idx := bytes.Index(tr.pending, q.probe)
		if idx < 0 || (first >= 0 && idx >= first) {
			continue
		}
		first, end, answer = idx, idx+len(q.probe), q.answer
	}
	if first < 0 {
		return false
	}
	tr.pending = tr.pending[end:]
	_, _ = tr.w.Write(answer)
	return true
}
