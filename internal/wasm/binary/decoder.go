package binary

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/wazerow/wazerow/internal/wasm"
)

// DecodeModule parses a WebAssembly binary into a *wasm.Module, per spec.md
// §4.1. Section order is not strictly enforced beyond what each decoder
// function requires to make progress; malformed section ordering is a
// validation concern left to wasm.validateModule's bounds checks, which
// will fail fast on indices that don't resolve.
func DecodeModule(binary []byte) (*wasm.Module, error) {
	if len(binary) < 8 {
		return nil, fmt.Errorf("invalid binary: too short")
	}
	if !bytes.Equal(binary[0:4], Magic) {
		return nil, fmt.Errorf("invalid magic number")
	}
	if !bytes.Equal(binary[4:8], Version) {
		return nil, fmt.Errorf("invalid version")
	}

	m := &wasm.Module{ID: sha256.Sum256(binary)}
	r := bytes.NewReader(binary[8:])

	var pendingTagImports []*wasm.Import

	for r.Len() > 0 {
		idByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("read section id: %w", err)
		}
		size, err := readUint32(r)
		if err != nil {
			return nil, fmt.Errorf("read section size: %w", err)
		}
		body := make([]byte, size)
		if size > 0 {
			if _, err := r.Read(body); err != nil {
				return nil, fmt.Errorf("read section %d body: %w", idByte, err)
			}
		}
		sr := bytes.NewReader(body)

		switch wasm.SectionID(idByte) {
		case wasm.SectionIDCustom:
			name, err := readName(sr)
			if err != nil {
				return nil, fmt.Errorf("custom section name: %w", err)
			}
			rest := make([]byte, sr.Len())
			_, _ = sr.Read(rest)
			if name == "name" {
				m.NameSection = decodeNameSection(rest)
			} else {
				m.CustomSections = append(m.CustomSections, decodeCustomSection(name, rest))
			}
		case wasm.SectionIDType:
			m.TypeSection, err = decodeTypeSection(sr)
		case wasm.SectionIDImport:
			m.ImportSection, err = decodeImportSection(sr)
			if err == nil {
				for _, imp := range m.ImportSection {
					if imp.DescTag != nil {
						pendingTagImports = append(pendingTagImports, imp)
					}
				}
			}
		case wasm.SectionIDFunction:
			m.FunctionSection, err = decodeFunctionSection(sr)
		case wasm.SectionIDTable:
			m.TableSection, err = decodeTableSection(sr)
		case wasm.SectionIDMemory:
			m.MemorySection, err = decodeMemorySection(sr)
		case wasm.SectionIDGlobal:
			m.GlobalSection, err = decodeGlobalSection(sr)
		case wasm.SectionIDTag:
			m.TagSection, err = decodeTagSection(sr, m.TypeSection)
		case wasm.SectionIDExport:
			m.ExportSection, err = decodeExportSection(sr)
		case wasm.SectionIDStart:
			m.StartSection, err = decodeStartSection(sr)
		case wasm.SectionIDElement:
			m.ElementSection, err = decodeElementSection(sr)
		case wasm.SectionIDDataCount:
			m.DataCountSection, err = decodeDataCountSection(sr)
		case wasm.SectionIDCode:
			m.CodeSection, err = decodeCodeSection(sr)
		case wasm.SectionIDData:
			m.DataSection, err = decodeDataSection(sr)
		default:
			return nil, fmt.Errorf("invalid section id: %#x", idByte)
		}
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", wasm.SectionIDName(wasm.SectionID(idByte)), err)
		}
	}

	// resolve tag imports' placeholder type against the now-fully-decoded
	// type section (binary encodes only a type index for tag imports).
	for _, imp := range pendingTagImports {
		typeIdx := imp.DescFunc
		if int(typeIdx) >= len(m.TypeSection) {
			return nil, fmt.Errorf("tag import %s.%s: type index %d out of range", imp.Module, imp.Name, typeIdx)
		}
		imp.DescTag = &wasm.Tag{Type: m.TypeSection[typeIdx].FunctionType}
	}

	return m, nil
}
