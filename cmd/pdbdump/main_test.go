package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jtang613/gocdi/internal/pdbtest"
	"github.com/jtang613/gocdi/pkg/pdb"
	"github.com/jtang613/gocdi/pkg/pdb/cdi"
)

func TestDescribeBlobLookup(t *testing.T) {
	blob := pdbtest.CDIBlob(2,
		pdbtest.CDIRecord(uint8(cdi.DynamicLocals), 0xAB),
		pdbtest.CDIRecord(uint8(cdi.TupleElementNames)),
	)

	kind := cdi.DynamicLocals
	view := describeBlob(blob, &kind)
	require.NotNil(t, view.Lookup)
	assert.Equal(t, &recordView{Kind: "DynamicLocals", State: "present", Payload: "ab"}, view.Lookup)

	kind = cdi.TupleElementNames
	assert.Equal(t, "present-empty", describeBlob(blob, &kind).Lookup.State)

	kind = cdi.UsingGroups
	assert.Equal(t, &recordView{Kind: "UsingGroups", State: "absent"}, describeBlob(blob, &kind).Lookup)
}

func TestDescribeBlobListing(t *testing.T) {
	blob := pdbtest.CDIBlob(7,
		pdbtest.CDIRecord(uint8(cdi.DynamicLocals), 0xAB),
		pdbtest.CDIRecord(0x33, 0x01),
		pdbtest.RawCDIRecord(4, 1, 2),
	)

	view := describeBlob(blob, nil)
	require.NotNil(t, view.Count)
	assert.Equal(t, 7, *view.Count)
	require.Len(t, view.Records, 2)
	assert.Equal(t, blobRecord{Offset: 4, Kind: "DynamicLocals", Size: 1, Payload: "ab"}, view.Records[0])
	assert.Equal(t, "Unknown(0x33)", view.Records[1].Kind)
	assert.Contains(t, view.Error, "record size out of range")

	view = describeBlob([]byte{9, 9, 9, 9}, nil)
	assert.Nil(t, view.Count)
	assert.Contains(t, view.Error, "unsupported directory version")
}

func TestNewEncoder(t *testing.T) {
	var buf bytes.Buffer
	enc, err := newEncoder(&buf, "json", false)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(&recordView{Kind: "DynamicLocals", State: "absent"}))
	assert.JSONEq(t, `{"kind":"DynamicLocals","state":"absent"}`, buf.String())

	buf.Reset()
	enc, err = newEncoder(&buf, "yaml", false)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(&recordView{Kind: "DynamicLocals", State: "present", Payload: "ab"}))
	var decoded recordView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ab", decoded.Payload)

	_, err = newEncoder(&buf, "xml", false)
	assert.Error(t, err)
}

func TestLookupMethod(t *testing.T) {
	image := pdbtest.ManagedPDB(pdbtest.Method{
		Token: 0x06000001,
		Name:  "Main",
		CDI:   pdbtest.CDIBlob(1, pdbtest.CDIRecord(uint8(cdi.EditAndContinueLocalSlotMap), 0x10)),
	})
	p, err := pdb.OpenReader(bytes.NewReader(image))
	require.NoError(t, err)

	kind := cdi.EditAndContinueLocalSlotMap
	view, err := lookupMethod(context.Background(), p, 0x06000001, &kind)
	require.NoError(t, err)
	assert.True(t, view.Found)
	assert.Equal(t, "0x06000001", view.Token)
	assert.Equal(t, "Main", view.Method.Name)
	assert.Equal(t, "10", view.Lookup.Payload)

	out, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"cdi_records":["EditAndContinueLocalSlotMap"]`)

	view, err = lookupMethod(context.Background(), p, 0x06000002, &kind)
	require.NoError(t, err)
	assert.False(t, view.Found)
	assert.Nil(t, view.Lookup)
}

func TestRunErrors(t *testing.T) {
	assert.Error(t, run(nil), "missing input file")
	assert.Error(t, run([]string{"--bogus"}))
	assert.Error(t, run([]string{"--kind", "Nope", "x"}))
	assert.Error(t, run([]string{"--blob", filepath.Join(t.TempDir(), "missing")}))

	path := filepath.Join(t.TempDir(), "app.pdb")
	require.NoError(t, os.WriteFile(path, pdbtest.ManagedPDB(), 0o644))
	assert.Error(t, run([]string{"--token", "zz", path}))
	assert.Error(t, run([]string{"--format", "toml", path}))
	assert.ErrorContains(t, run([]string{"--kind", "DynamicLocals", path}), "--kind requires --token or --blob")
	assert.ErrorContains(t, run([]string{"--kind", "Nope", "--token", "0x06000001", path}), "Nope")
}
