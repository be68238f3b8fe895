package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jtang613/gocdi/pkg/pdb"
	"github.com/jtang613/gocdi/pkg/pdb/cdi"
)

type encoder interface {
	Encode(v interface{}) error
}

func newEncoder(w io.Writer, format string, pretty bool) (encoder, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		if pretty {
			enc.SetIndent("", "  ")
		}
		return enc, nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return enc, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// recordView is one record lookup result.
type recordView struct {
	Kind    string `json:"kind" yaml:"kind"`
	State   string `json:"state" yaml:"state"`
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// blobRecord is one entry of a blob listing.
type blobRecord struct {
	Offset  int    `json:"offset" yaml:"offset"`
	Kind    string `json:"kind" yaml:"kind"`
	Size    int    `json:"payload_size" yaml:"payload_size"`
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty"`
}

type blobView struct {
	Count   *int         `json:"count,omitempty" yaml:"count,omitempty"`
	Records []blobRecord `json:"records,omitempty" yaml:"records,omitempty"`
	Error   string       `json:"error,omitempty" yaml:"error,omitempty"`
	Lookup  *recordView  `json:"lookup,omitempty" yaml:"lookup,omitempty"`
}

type methodView struct {
	Token  string      `json:"token" yaml:"token"`
	Found  bool        `json:"found" yaml:"found"`
	Method *pdb.Method `json:"method,omitempty" yaml:"method,omitempty"`
	Lookup *recordView `json:"lookup,omitempty" yaml:"lookup,omitempty"`
}

func viewResult(kind cdi.RecordKind, r cdi.Result) *recordView {
	v := &recordView{Kind: kind.String(), State: r.State().String()}
	if payload, ok := r.Payload(); ok {
		v.Payload = hex.EncodeToString(payload)
	}
	return v
}

// describeBlob lists the records of a raw blob, or looks up one kind when
// kind is set.
func describeBlob(data []byte, kind *cdi.RecordKind) *blobView {
	if kind != nil {
		return &blobView{Lookup: viewResult(*kind, cdi.TryGetRecord(data, *kind))}
	}

	view := &blobView{}
	if n, err := cdi.Count(data); err == nil {
		view.Count = &n
	}
	records, err := cdi.Records(data)
	for _, r := range records {
		view.Records = append(view.Records, blobRecord{
			Offset:  r.Offset,
			Kind:    r.Kind.String(),
			Size:    len(r.Payload),
			Payload: hex.EncodeToString(r.Payload),
		})
	}
	if err != nil {
		view.Error = err.Error()
	}
	return view
}

func lookupMethod(ctx context.Context, p *pdb.PDB, token uint32, kind *cdi.RecordKind) (*methodView, error) {
	view := &methodView{Token: fmt.Sprintf("0x%08x", token)}

	m, ok, err := p.Method(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to read methods: %w", err)
	}
	if !ok {
		return view, nil
	}
	view.Found = true
	view.Method = m

	if kind != nil {
		r, err := p.CustomDebugInfoRecord(ctx, token, *kind)
		if err != nil {
			return nil, err
		}
		view.Lookup = viewResult(*kind, r)
	}
	return view, nil
}
