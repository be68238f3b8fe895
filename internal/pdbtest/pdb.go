package pdbtest

import "github.com/google/uuid"

// TestGUID is the GUID stamped into images built by ManagedPDB.
var TestGUID = uuid.MustParse("0f8fad5b-d9cb-469f-a165-70867728950e")

// Method is a managed method written by ManagedPDB.
type Method struct {
	Token uint32
	Name  string
	CDI   []byte // nil writes no MD2 record
}

// ManagedPDB builds an MSF image with an info stream, a DBI stream and one
// module (stream 4) holding a global managed procedure per method.
func ManagedPDB(methods ...Method) []byte {
	syms := NewSymbolStream()
	for _, m := range methods {
		syms.ManProc(true, m.Token, m.Name)
		if m.CDI != nil {
			syms.CustomDebugInfo(m.CDI)
		}
		syms.End()
	}
	return ManagedPDBWithSymbols(syms.Bytes())
}

// ManagedPDBWithSymbols is ManagedPDB with a caller-built symbol stream.
// Extra modules are listed in the DBI stream after App.dll; their stream
// indices are written as given.
func ManagedPDBWithSymbols(symbols []byte, extra ...Module) []byte {
	modules := append([]Module{{
		Name:      "App.dll",
		ObjFile:   "App.dll",
		SymStream: 4,
		SymSize:   uint32(len(symbols)),
	}}, extra...)
	return MSF(
		[]byte{},
		InfoStream(TestGUID, 3, map[string]uint32{"/names": 5}),
		[]byte{},
		DBIStream(modules...),
		symbols,
		[]byte{},
	)
}
