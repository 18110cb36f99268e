package snapio

import "github.com/arloliu/go-snapio/packet"

// labelSeq generates transaction labels for one connection.
//
// The counter is advanced before each request and wraps to 0 after
// packet.MaxLabel, so a fresh connection sends 1, 2, ... 63, 0, 1, ...
// It is not safe for concurrent use; the connection serializes transactions.
type labelSeq struct {
	last uint8
}

func (s *labelSeq) next() uint8 {
	s.last++
	if s.last > packet.MaxLabel {
		s.last = 0
	}

	return s.last
}

func (s *labelSeq) reset() {
	s.last = 0
}

func labelsMatch(sent, received uint8) bool {
	return sent == received
}
