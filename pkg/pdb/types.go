// Package pdb provides high-level access to the managed method debug data in
// Microsoft PDB files.
package pdb

// Method is a managed method found in a module symbol stream.
type Method struct {
	Token    uint32   `json:"token" yaml:"token"`
	Name     string   `json:"name" yaml:"name"`
	Module   string   `json:"module,omitempty" yaml:"module,omitempty"`
	Offset   uint32   `json:"offset" yaml:"offset"`
	Segment  uint16   `json:"segment" yaml:"segment"`
	Length   uint32   `json:"length" yaml:"length"`
	IsGlobal bool     `json:"is_global" yaml:"is_global"`
	Records  []string `json:"cdi_records,omitempty" yaml:"cdi_records,omitempty"`
	CDIError string   `json:"cdi_error,omitempty" yaml:"cdi_error,omitempty"`

	customDebugInfo []byte
}

// HasCustomDebugInfo reports whether the method carries a CDI blob.
func (m *Method) HasCustomDebugInfo() bool {
	return m.customDebugInfo != nil
}

// clone copies m so callers cannot reach the cached slices.
func (m Method) clone() Method {
	if m.Records != nil {
		m.Records = append([]string(nil), m.Records...)
	}
	return m
}

// ModuleInfo represents information about a compiled module.
type ModuleInfo struct {
	Name         string `json:"name" yaml:"name"`
	ObjectFile   string `json:"object_file" yaml:"object_file"`
	SymbolStream uint16 `json:"symbol_stream" yaml:"symbol_stream"`
	SymbolSize   uint32 `json:"symbol_size" yaml:"symbol_size"`
	SourceFiles  uint16 `json:"source_files" yaml:"source_files"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PDBInfo contains basic PDB file information.
type PDBInfo struct {
	GUID         string            `json:"guid" yaml:"guid"`
	Age          uint32            `json:"age" yaml:"age"`
	Version      uint32            `json:"version" yaml:"version"`
	Machine      string            `json:"machine,omitempty" yaml:"machine,omitempty"`
	Streams      int               `json:"streams" yaml:"streams"`
	NamedStreams map[string]uint32 `json:"named_streams,omitempty" yaml:"named_streams,omitempty"`
}
