package binary

import (
	"bytes"
	"fmt"

	"github.com/wazerow/wazerow/internal/wasm"
)

func decodeCodeSection(r *bytes.Reader) ([]*wasm.Code, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read code count: %w", err)
	}
	out := make([]*wasm.Code, count)
	for i := range out {
		code, err := decodeCode(r)
		if err != nil {
			return nil, fmt.Errorf("code[%d]: %w", i, err)
		}
		out[i] = code
	}
	return out, nil
}

// decodeCode decodes one code-section entry. BodyOffsetInCodeSection is
// tracked relative to the entry's own body-size field rather than the
// section's absolute start; DESIGN.md documents this as sufficient for
// wasmdebug's stack traces without threading a running section offset
// through every call.
func decodeCode(r *bytes.Reader) (*wasm.Code, error) {
	bodySize, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("read body size: %w", err)
	}
	remaining := int64(bodySize)
	bodyStart := int64(r.Len())

	localCount, n, err := readLEBTracked(r)
	if err != nil {
		return nil, fmt.Errorf("read local decl count: %w", err)
	}
	remaining -= n

	var locals []uint8 // expanded, not run-length, since interpreter indexes locals directly
	for i := uint32(0); i < localCount; i++ {
		runLen, n1, err := readLEBTracked(r)
		if err != nil {
			return nil, fmt.Errorf("read local run %d: %w", i, err)
		}
		vtByte, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		remaining -= n1 + 1
		for j := uint32(0); j < runLen; j++ {
			locals = append(locals, vtByte)
		}
	}

	offsetInCodeSection := uint64(bodyStart - r.Len())

	body := make([]byte, remaining)
	if remaining > 0 {
		if _, err := r.Read(body); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}

	return &wasm.Code{
		LocalTypes:              locals,
		Body:                    body,
		BodyOffsetInCodeSection: offsetInCodeSection,
	}, nil
}

// readLEBTracked reads a LEB128 uint32 and also returns how many bytes it
// consumed, needed to account bodySize correctly against raw locals bytes.
func readLEBTracked(r *bytes.Reader) (uint32, int64, error) {
	before := r.Len()
	v, err := readUint32(r)
	if err != nil {
		return 0, 0, err
	}
	return v, int64(before - r.Len()), nil
}

func encodeCode(c *wasm.Code) []byte {
	var localsBuf []byte
	// re-collapse expanded LocalTypes into maximal runs for compact encoding.
	runs := collapseLocalRuns(c.LocalTypes)
	localsBuf = append(localsBuf, encodeVarUint32Len(len(runs))...)
	for _, run := range runs {
		localsBuf = append(localsBuf, encodeVarUint32Len(int(run.count))...)
		localsBuf = append(localsBuf, run.valueType)
	}
	body := append(append([]byte{}, localsBuf...), c.Body...)
	out := encodeVarUint32Len(len(body))
	return append(out, body...)
}

type localRun struct {
	count     uint32
	valueType byte
}

func collapseLocalRuns(locals []byte) []localRun {
	var runs []localRun
	for _, vt := range locals {
		if len(runs) > 0 && runs[len(runs)-1].valueType == vt {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, localRun{count: 1, valueType: vt})
	}
	return runs
}
