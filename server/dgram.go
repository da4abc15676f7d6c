package server

// DGramExtractor treats each Fetch's underlying raw read as exactly
// one complete datagram record, since transport.DgramTransport.Read
// never returns a partial datagram and never coalesces two. Unlike
// TextServer, it does not search for a delimiter: whatever bytes
// arrived in one read are the whole record.
type DGramExtractor struct{}

// NewDGramExtractor builds an Extractor that treats the entire decoded
// buffer content as one record per call, suitable only when paired
// with a transport.DgramTransport.
func NewDGramExtractor() *DGramExtractor { return &DGramExtractor{} }

func (d *DGramExtractor) Extract(buf []byte, atEOF bool) (int, []byte, Kind) {
	if len(buf) == 0 {
		if atEOF {
			return 0, nil, KindEOF
		}
		return 0, nil, KindAgain
	}
	return len(buf), buf, KindNone
}
