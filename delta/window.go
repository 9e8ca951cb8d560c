// Package delta implements the stateless window protocol used to mirror the
// history log over a request/response transport. A client asks for bytes from
// an absolute offset under a given version; the server answers from a single
// snapshot with enough information for the client to reconcile partial
// overlap, eviction and resets.
package delta

// Request describes one sync poll.
type Request struct {
	// MaxLen caps the number of part bytes returned.
	MaxLen int
	// Version is the log version the client last observed.
	Version int
	// Begin is the absolute offset the client wants data from.
	Begin int
}

// Response is the server's answer, computed from one log snapshot.
type Response struct {
	Version int
	Start   int
	// Begin is the effective offset the part was sliced from, after version
	// and range adjustment. It may differ from the requested begin.
	Begin int
	Part  []byte
}

// ComputeWindow answers req from the snapshot (version, start, buffer). It is
// a pure function: identical inputs yield identical responses.
//
// A version mismatch means the client's offsets belong to another epoch, so
// the requested begin is discarded and the answer starts at offset zero of
// the current epoch. Otherwise begin is clamped into the retained range:
// below start means the data was already evicted, above the end means it has
// not been produced yet.
func ComputeWindow(version, start int, buffer []byte, req Request) Response {
	begin := req.Begin
	if req.Version != version {
		begin = 0
	}

	if begin < start {
		begin = start
	}
	if end := start + len(buffer); begin > end {
		begin = end
	}

	part := buffer[begin-start:]
	if max := req.MaxLen; max >= 0 && len(part) > max {
		part = part[:max]
	}

	return Response{
		Version: version,
		Start:   start,
		Begin:   begin,
		Part:    part,
	}
}
