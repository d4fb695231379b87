package gateway

// textAssembler joins the chunks the reader cuts from one text message.
// gorilla/websocket reassembles continuation frames itself and hands over a
// single message at a time, so chunks of different messages never interleave.
type textAssembler struct {
	buf []byte
}

// feed consumes one chunk. It returns the message when last completes it.
func (a *textAssembler) feed(data []byte, first, last bool) ([]byte, bool) {
	if first {
		a.buf = a.buf[:0]
	}
	if !last {
		a.buf = append(a.buf, data...)
		return nil, false
	}
	if first {
		return append([]byte(nil), data...), true
	}

	msg := append(append([]byte(nil), a.buf...), data...)
	a.buf = a.buf[:0]
	return msg, true
}
