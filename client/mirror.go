// Package client maintains a local mirror of the server's history log by
// polling the delta-sync endpoint and reconciling each response against the
// cached window.
package client

import "github.com/furisto/console/delta"

// Mirror is the client's best-known reconstruction of a suffix of the server
// log. It may lag behind the server and covers the absolute byte range
// [Start, Start+len(Data)) under Version.
type Mirror struct {
	Version int
	Start   int
	Data    []byte
}

// End returns the absolute offset just past the mirrored data, which is the
// offset the next poll should request from.
func (m *Mirror) End() int {
	return m.Start + len(m.Data)
}

// Clone returns a deep copy.
func (m *Mirror) Clone() Mirror {
	return Mirror{
		Version: m.Version,
		Start:   m.Start,
		Data:    append([]byte(nil), m.Data...),
	}
}

// Apply reconciles a sync response into the mirror and reports whether any
// progress was made. Progress means the mirror advanced in some way — data
// was appended, stale cached bytes were trimmed after a server-side eviction,
// or the mirror was replaced wholesale after a reset — and tells the caller
// to drop its poll interval back to the minimum.
//
// Invalid and stale responses are discarded without touching the mirror:
// negative fields, a part anchored before the server's own start, a response
// from an older version than the mirror already has, or a new-version
// response that does not begin exactly at the new epoch's origin (mid-epoch
// data the client cannot safely anchor).
func (m *Mirror) Apply(resp delta.Response) bool {
	if resp.Version < 0 || resp.Start < 0 || resp.Begin < 0 || resp.Begin < resp.Start {
		return false
	}

	switch {
	case resp.Version < m.Version:
		// Stale response overtaken by a newer version already observed.
		return false

	case resp.Version == m.Version:
		progress := false

		if resp.Start > m.Start {
			// The server evicted bytes the mirror still holds.
			trim := resp.Start - m.Start
			if trim < len(m.Data) {
				m.Data = m.Data[trim:]
			} else {
				m.Data = nil
			}
			m.Start = resp.Start
			progress = true
		}

		begin, part := resp.Begin, resp.Part
		end := m.End()
		if begin+len(part) <= end {
			// Fully redundant with what is already cached.
			return progress
		}
		if begin < end {
			// Keep only the non-overlapping suffix.
			part = part[end-begin:]
			begin = end
		}
		if begin > end {
			// Gap between cached data and the part; unusable.
			return progress
		}

		m.Data = append(m.Data, part...)
		return true

	default:
		// A reset occurred; only accept data anchored at the epoch origin.
		if resp.Begin != resp.Start {
			return false
		}
		m.Version = resp.Version
		m.Start = resp.Start
		m.Data = append([]byte(nil), resp.Part...)
		return true
	}
}
