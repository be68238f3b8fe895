package pdb

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jtang613/gocdi/pkg/pdb/cdi"
	"github.com/jtang613/gocdi/pkg/pdb/codeview"
	"github.com/jtang613/gocdi/pkg/pdb/msf"
	"github.com/jtang613/gocdi/pkg/pdb/streams"
)

// Stream indices
const (
	StreamPDB = 1 // PDB info stream
	StreamDBI = 3 // Debug info stream
)

// PDB represents an opened PDB file. Its methods are safe for concurrent use.
type PDB struct {
	msf     *msf.MSF
	pdbInfo *streams.PDBInfo
	dbi     *streams.DBIStream

	mu         sync.Mutex
	methods    []Method
	byToken    map[uint32]int
	moduleErrs []error // by DBI module index, set by the method scan
}

// Open opens a PDB file and parses its core structures.
func Open(path string) (*PDB, error) {
	m, err := msf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSF: %w", err)
	}
	return newPDB(m), nil
}

// OpenReader parses a PDB held by r. Close is a no-op for the reader.
func OpenReader(r io.ReaderAt) (*PDB, error) {
	m, err := msf.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open MSF: %w", err)
	}
	return newPDB(m), nil
}

// newPDB loads the info and DBI streams. Either may be missing or damaged;
// the PDB is still usable for whatever parsed.
func newPDB(m *msf.MSF) *PDB {
	p := &PDB{msf: m}

	if m.NumStreams() > StreamPDB {
		if reader, err := m.StreamReader(StreamPDB); err == nil {
			p.pdbInfo, _ = streams.ReadPDBInfo(reader)
		}
	}

	if m.NumStreams() > StreamDBI {
		stream, err := m.Stream(StreamDBI)
		if err == nil && stream.Size() > 0 {
			if data, err := stream.ReadAll(); err == nil {
				p.dbi, _ = streams.ReadDBIStream(data)
			}
		}
	}

	return p
}

// Close closes the PDB file.
func (p *PDB) Close() error {
	return p.msf.Close()
}

// Info returns basic PDB file information.
func (p *PDB) Info() *PDBInfo {
	info := &PDBInfo{
		Streams: p.msf.NumStreams(),
	}

	if p.pdbInfo != nil {
		info.GUID = p.pdbInfo.GUIDString()
		info.Age = p.pdbInfo.Age
		info.Version = p.pdbInfo.Version
		info.NamedStreams = p.pdbInfo.NamedStreams
	}

	if p.dbi != nil && p.dbi.Header.Machine != streams.MachineUnknown {
		info.Machine = streams.MachineTypeName(p.dbi.Header.Machine)
	}

	return info
}

// Modules returns information about compiled modules. Once Methods has run,
// modules whose symbol stream could not be read carry an Error.
func (p *PDB) Modules() []ModuleInfo {
	if p.dbi == nil {
		return nil
	}

	p.mu.Lock()
	moduleErrs := p.moduleErrs
	p.mu.Unlock()

	modules := make([]ModuleInfo, len(p.dbi.Modules))
	for i, mod := range p.dbi.Modules {
		modules[i] = ModuleInfo{
			Name:         mod.ModuleName,
			ObjectFile:   mod.ObjFileName,
			SymbolStream: mod.ModuleSymStream,
			SymbolSize:   mod.SymByteSize,
			SourceFiles:  mod.SourceFileCount,
		}
		if i < len(moduleErrs) && moduleErrs[i] != nil {
			modules[i].Error = moduleErrs[i].Error()
		}
	}
	return modules
}

// Methods returns every managed method, sorted by token. Module symbol
// streams are read concurrently and the scan is cached after the first
// successful call. A module whose stream cannot be read is skipped and its
// error reported by Modules; only cancellation of ctx fails the scan.
//
// The returned slice is a copy; CDI blobs inside it still alias the file
// data and must not be modified.
func (p *PDB) Methods(ctx context.Context) ([]Method, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.scanMethods(ctx); err != nil {
		return nil, err
	}

	methods := make([]Method, len(p.methods))
	for i := range p.methods {
		methods[i] = p.methods[i].clone()
	}
	return methods, nil
}

// scanMethods fills the method cache. p.mu must be held.
func (p *PDB) scanMethods(ctx context.Context) error {
	if p.methods != nil {
		return nil
	}
	if p.dbi == nil {
		p.methods = []Method{}
		p.byToken = map[uint32]int{}
		return nil
	}

	perModule := make([][]Method, len(p.dbi.Modules))
	moduleErrs := make([]error, len(p.dbi.Modules))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i := range p.dbi.Modules {
		mod := &p.dbi.Modules[i]
		if !mod.HasSymbols() {
			continue
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			methods, err := p.readModuleMethods(mod)
			if err != nil {
				moduleErrs[i] = fmt.Errorf("module %q: %w", mod.ModuleName, err)
				return nil
			}
			perModule[i] = methods
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	methods := make([]Method, 0)
	for _, mm := range perModule {
		methods = append(methods, mm...)
	}
	sort.SliceStable(methods, func(i, j int) bool {
		return methods[i].Token < methods[j].Token
	})

	// First definition of a token wins, as in the symbol stream order.
	byToken := make(map[uint32]int, len(methods))
	for i := range methods {
		if _, ok := byToken[methods[i].Token]; !ok {
			byToken[methods[i].Token] = i
		}
	}

	p.methods = methods
	p.byToken = byToken
	p.moduleErrs = moduleErrs
	return nil
}

// readModuleMethods reads one module symbol stream. A damaged record
// list keeps the methods parsed before the damage.
func (p *PDB) readModuleMethods(mod *streams.ModuleInfo) ([]Method, error) {
	stream, err := p.msf.Stream(int(mod.ModuleSymStream))
	if err != nil {
		return nil, err
	}
	data, err := stream.ReadAll()
	if err != nil {
		return nil, err
	}
	if uint32(len(data)) > mod.SymByteSize {
		data = data[:mod.SymByteSize]
	}

	syms, _ := codeview.ScanManagedMethods(data)
	methods := make([]Method, 0, len(syms))
	for _, s := range syms {
		m := Method{
			Token:           s.Proc.Token,
			Name:            s.Proc.Name,
			Module:          mod.ModuleName,
			Offset:          s.Proc.Offset,
			Segment:         s.Proc.Segment,
			Length:          s.Proc.Length,
			IsGlobal:        s.Global,
			customDebugInfo: s.CustomDebugInfo,
		}
		if s.CustomDebugInfo != nil {
			records, err := cdi.Records(s.CustomDebugInfo)
			for _, r := range records {
				m.Records = append(m.Records, r.Kind.String())
			}
			if err != nil {
				m.CDIError = err.Error()
			}
		}
		methods = append(methods, m)
	}
	return methods, nil
}

// Method returns a copy of the managed method with the given metadata token.
func (p *PDB) Method(ctx context.Context, token uint32) (*Method, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.scanMethods(ctx); err != nil {
		return nil, false, err
	}
	idx, ok := p.byToken[token]
	if !ok {
		return nil, false, nil
	}
	m := p.methods[idx].clone()
	return &m, true, nil
}

// CustomDebugInfo returns the raw custom debug information blob of a
// method. ok is false when the method is unknown or has no blob.
func (p *PDB) CustomDebugInfo(ctx context.Context, token uint32) ([]byte, bool, error) {
	m, ok, err := p.Method(ctx, token)
	if err != nil || !ok || m.customDebugInfo == nil {
		return nil, false, err
	}
	return m.customDebugInfo, true, nil
}

// CustomDebugInfoRecord looks up the first record of kind in a method's
// blob. A method without a blob yields an absent result, not an error;
// errors only report failures reading the PDB itself.
func (p *PDB) CustomDebugInfoRecord(ctx context.Context, token uint32, kind cdi.RecordKind) (cdi.Result, error) {
	blob, ok, err := p.CustomDebugInfo(ctx, token)
	if err != nil || !ok {
		return cdi.Result{}, err
	}
	return cdi.TryGetRecord(blob, kind), nil
}
