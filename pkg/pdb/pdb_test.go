package pdb

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtang613/gocdi/internal/pdbtest"
	"github.com/jtang613/gocdi/pkg/pdb/cdi"
)

var (
	slotMapBlob = pdbtest.CDIBlob(2,
		pdbtest.CDIRecord(uint8(cdi.UsingGroups), 1, 0),
		pdbtest.CDIRecord(uint8(cdi.EditAndContinueLocalSlotMap), 0x01, 0x02),
	)
	emptyDynamicBlob = pdbtest.CDIBlob(1, pdbtest.CDIRecord(uint8(cdi.DynamicLocals)))
	corruptBlob      = pdbtest.CDIBlob(1, pdbtest.RawCDIRecord(4, uint8(cdi.DynamicLocals), 64))
)

func openTestPDB(t *testing.T, methods ...pdbtest.Method) *PDB {
	t.Helper()
	p, err := OpenReader(bytes.NewReader(pdbtest.ManagedPDB(methods...)))
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func TestInfoAndModules(t *testing.T) {
	p := openTestPDB(t)

	info := p.Info()
	assert.Equal(t, "0F8FAD5BD9CB469FA16570867728950E", info.GUID)
	assert.Equal(t, uint32(3), info.Age)
	assert.Equal(t, "x64", info.Machine)
	assert.Equal(t, 6, info.Streams)
	assert.Equal(t, map[string]uint32{"/names": 5}, info.NamedStreams)

	modules := p.Modules()
	require.Len(t, modules, 1)
	assert.Equal(t, "App.dll", modules[0].Name)
	assert.Equal(t, uint16(4), modules[0].SymbolStream)
}

func TestMethods(t *testing.T) {
	p := openTestPDB(t,
		pdbtest.Method{Token: 0x06000003, Name: "C", CDI: corruptBlob},
		pdbtest.Method{Token: 0x06000001, Name: "A", CDI: slotMapBlob},
		pdbtest.Method{Token: 0x06000002, Name: "B"},
	)

	methods, err := p.Methods(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 3)

	assert.Equal(t, "A", methods[0].Name)
	assert.Equal(t, "App.dll", methods[0].Module)
	assert.True(t, methods[0].IsGlobal)
	assert.Equal(t, []string{"UsingGroups", "EditAndContinueLocalSlotMap"}, methods[0].Records)
	assert.True(t, methods[0].HasCustomDebugInfo())

	assert.Equal(t, "B", methods[1].Name)
	assert.False(t, methods[1].HasCustomDebugInfo())
	assert.Empty(t, methods[1].Records)

	assert.Equal(t, "C", methods[2].Name)
	assert.Empty(t, methods[2].Records)
	assert.Contains(t, methods[2].CDIError, "record size out of range")

	again, err := p.Methods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, methods, again)
}

func TestCustomDebugInfoRecord(t *testing.T) {
	p := openTestPDB(t,
		pdbtest.Method{Token: 0x06000001, Name: "A", CDI: slotMapBlob},
		pdbtest.Method{Token: 0x06000002, Name: "B"},
		pdbtest.Method{Token: 0x06000003, Name: "C", CDI: corruptBlob},
		pdbtest.Method{Token: 0x06000004, Name: "D", CDI: emptyDynamicBlob},
	)
	ctx := context.Background()

	tests := []struct {
		name    string
		token   uint32
		kind    cdi.RecordKind
		state   cdi.State
		payload []byte
	}{
		{"slot map", 0x06000001, cdi.EditAndContinueLocalSlotMap, cdi.PresentWithData, []byte{0x01, 0x02}},
		{"missing kind", 0x06000001, cdi.DynamicLocals, cdi.Absent, nil},
		{"no blob", 0x06000002, cdi.EditAndContinueLocalSlotMap, cdi.Absent, nil},
		{"corrupt blob", 0x06000003, cdi.DynamicLocals, cdi.Absent, nil},
		{"empty payload", 0x06000004, cdi.DynamicLocals, cdi.PresentEmpty, []byte{}},
		{"unknown token", 0x06000099, cdi.DynamicLocals, cdi.Absent, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := p.CustomDebugInfoRecord(ctx, tt.token, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.state, r.State())
			if tt.payload != nil {
				payload, ok := r.Payload()
				require.True(t, ok)
				assert.Equal(t, tt.payload, payload)
			}
		})
	}

	blob, ok, err := p.CustomDebugInfo(ctx, 0x06000001)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, slotMapBlob, blob)

	_, ok, err = p.CustomDebugInfo(ctx, 0x06000002)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMethodsConcurrent(t *testing.T) {
	p := openTestPDB(t,
		pdbtest.Method{Token: 0x06000001, Name: "A", CDI: slotMapBlob},
		pdbtest.Method{Token: 0x06000002, Name: "B", CDI: emptyDynamicBlob},
	)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := p.CustomDebugInfoRecord(context.Background(), 0x06000001, cdi.EditAndContinueLocalSlotMap)
			if err != nil || r.State() != cdi.PresentWithData {
				t.Errorf("unexpected result %v %v", r.State(), err)
			}
		}()
	}
	wg.Wait()
}

func TestMethodsCancelled(t *testing.T) {
	p := openTestPDB(t, pdbtest.Method{Token: 0x06000001, Name: "A"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Methods(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	methods, err := p.Methods(context.Background())
	require.NoError(t, err)
	assert.Len(t, methods, 1, "a failed scan is not cached")
}

func TestDamagedSymbolStream(t *testing.T) {
	syms := pdbtest.NewSymbolStream().
		ManProc(true, 0x06000001, "A").
		CustomDebugInfo(slotMapBlob).
		End().
		Truncated().
		Bytes()
	p, err := OpenReader(bytes.NewReader(pdbtest.ManagedPDBWithSymbols(syms)))
	require.NoError(t, err)

	r, err := p.CustomDebugInfoRecord(context.Background(), 0x06000001, cdi.UsingGroups)
	require.NoError(t, err)
	assert.Equal(t, cdi.PresentWithData, r.State())
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.pdb")
	require.NoError(t, os.WriteFile(path, pdbtest.ManagedPDB(pdbtest.Method{Token: 0x06000001, Name: "A"}), 0o644))

	p, err := Open(path)
	require.NoError(t, err)
	defer p.Close()

	methods, err := p.Methods(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 1)

	_, err = Open(filepath.Join(t.TempDir(), "missing.pdb"))
	assert.Error(t, err)

	_, err = OpenReader(bytes.NewReader([]byte("not a pdb")))
	assert.Error(t, err)
}

func TestUnreadableModuleIsSkipped(t *testing.T) {
	syms := pdbtest.NewSymbolStream().
		ManProc(true, 0x06000001, "A").
		CustomDebugInfo(slotMapBlob).
		End().
		Bytes()
	image := pdbtest.ManagedPDBWithSymbols(syms, pdbtest.Module{
		Name:      "Broken.dll",
		ObjFile:   "Broken.dll",
		SymStream: 99,
		SymSize:   64,
	})
	p, err := OpenReader(bytes.NewReader(image))
	require.NoError(t, err)

	r, err := p.CustomDebugInfoRecord(context.Background(), 0x06000001, cdi.EditAndContinueLocalSlotMap)
	require.NoError(t, err)
	payload, ok := r.Payload()
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x02}, payload)

	modules := p.Modules()
	require.Len(t, modules, 2)
	assert.Empty(t, modules[0].Error)
	assert.Contains(t, modules[1].Error, `module "Broken.dll"`)
	assert.Contains(t, modules[1].Error, "stream index 99 out of range")
}

func TestMethodsReturnsCopies(t *testing.T) {
	p := openTestPDB(t, pdbtest.Method{Token: 0x06000001, Name: "A", CDI: slotMapBlob})
	ctx := context.Background()

	methods, err := p.Methods(ctx)
	require.NoError(t, err)
	require.Len(t, methods, 1)
	methods[0].Name = "changed"
	methods[0].Records[0] = "changed"

	m, ok, err := p.Method(ctx, 0x06000001)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "A", m.Name)
	assert.Equal(t, "UsingGroups", m.Records[0])
	m.Token = 0x06000099

	again, ok, err := p.Method(ctx, 0x06000001)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x06000001), again.Token)
}
