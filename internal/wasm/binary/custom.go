package binary

import (
	"bytes"

	"github.com/wazerow/wazerow/internal/wasm"
)

const (
	nameSubsectionModule   = 0x00
	nameSubsectionFunction = 0x01
	nameSubsectionLocal    = 0x02
)

// decodeNameSection parses the contents of a custom section named "name",
// per the tool-conventions name section. Malformed subsections are skipped
// rather than failing the whole decode, since name data never affects
// execution semantics.
func decodeNameSection(data []byte) *wasm.NameSection {
	ns := &wasm.NameSection{
		FunctionNames: map[uint32]string{},
		LocalNames:    map[uint32]map[uint32]string{},
	}
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			break
		}
		size, err := readUint32(r)
		if err != nil {
			break
		}
		sub := make([]byte, size)
		if _, err := r.Read(sub); err != nil {
			break
		}
		sr := bytes.NewReader(sub)
		switch id {
		case nameSubsectionModule:
			if name, err := readName(sr); err == nil {
				ns.ModuleName = name
			}
		case nameSubsectionFunction:
			decodeNameMap(sr, ns.FunctionNames)
		case nameSubsectionLocal:
			decodeIndirectNameMap(sr, ns.LocalNames)
		}
	}
	return ns
}

func decodeNameMap(r *bytes.Reader, out map[uint32]string) {
	count, err := readUint32(r)
	if err != nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		idx, err := readUint32(r)
		if err != nil {
			return
		}
		name, err := readName(r)
		if err != nil {
			return
		}
		out[idx] = name
	}
}

func decodeIndirectNameMap(r *bytes.Reader, out map[uint32]map[uint32]string) {
	count, err := readUint32(r)
	if err != nil {
		return
	}
	for i := uint32(0); i < count; i++ {
		idx, err := readUint32(r)
		if err != nil {
			return
		}
		m := map[uint32]string{}
		decodeNameMap(r, m)
		out[idx] = m
	}
}

func decodeCustomSection(name string, data []byte) *wasm.CustomSection {
	return &wasm.CustomSection{Name: name, Data: data}
}

func encodeCustomSection(cs *wasm.CustomSection) []byte {
	b := encodeName(cs.Name)
	return append(b, cs.Data...)
}
