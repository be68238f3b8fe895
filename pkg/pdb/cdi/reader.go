package cdi

// State is the outcome of a record lookup.
type State uint8

const (
	// Absent means no valid record of the requested kind was found, or the
	// blob was malformed before one could be reached.
	Absent State = iota
	// PresentEmpty means the record was found and its payload is empty.
	PresentEmpty
	// PresentWithData means the record was found with a non-empty payload.
	PresentWithData
)

func (s State) String() string {
	switch s {
	case PresentEmpty:
		return "present-empty"
	case PresentWithData:
		return "present"
	default:
		return "absent"
	}
}

// Result is the outcome of TryGetRecord. The zero value is Absent.
type Result struct {
	state   State
	payload []byte
}

// State returns the lookup state.
func (r Result) State() State {
	return r.state
}

// Found reports whether a record was matched, empty or not.
func (r Result) Found() bool {
	return r.state != Absent
}

// Payload returns the matched payload and whether a record was found.
// The slice aliases the blob passed to TryGetRecord and must not be modified.
func (r Result) Payload() ([]byte, bool) {
	return r.payload, r.state != Absent
}

// TryGetRecord returns the first record of the requested kind in blob.
//
// Any structural problem met before the match, including an unsupported
// version, yields Absent; so does an unknown kind. The blob is never copied.
func TryGetRecord(blob []byte, kind RecordKind) Result {
	if !kind.Known() {
		return Result{}
	}

	_, offset, err := readDirectoryHeader(blob)
	if err != nil {
		return Result{}
	}

	for offset < len(blob) {
		hdr, end, err := readRecordHeader(blob, offset)
		if err != nil {
			return Result{}
		}

		if hdr.Kind == kind {
			payload := blob[offset+RecordHeaderSize : end : end]
			if len(payload) == 0 {
				return Result{state: PresentEmpty, payload: payload}
			}
			return Result{state: PresentWithData, payload: payload}
		}

		offset = end
	}

	return Result{}
}
