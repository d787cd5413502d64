package wasm

const (
	// MemoryPageSize is the default number of bytes per page, absent the
	// custom-page-sizes proposal (which lets a memory declare a smaller
	// power-of-two page size down to 1 byte).
	MemoryPageSize = uint64(65536)
	// MemoryPageSizeInBits satisfies log2(MemoryPageSize).
	MemoryPageSizeInBits = 16
	// MemoryLimitPages is the maximum number of pages any memory index
	// space allows: 2^16, making the maximum 32-bit address space 4GiB.
	MemoryLimitPages = uint32(65536)

	// MaximumFunctionTypes caps the number of distinct function types a
	// module may declare.
	MaximumFunctionTypes = 1 << 27
	// MaximumGlobals caps the combined imported+module-defined global count.
	MaximumGlobals = 1 << 27
	// MaximumTables caps the combined imported+module-defined table count,
	// reached in practice only by multi-table modules using the reference
	// types proposal.
	MaximumTables = 1 << 27
	// MaximumStandardFunctionParams is the number of parameters the
	// interpreter supports without spilling to a slower path.
	MaximumStandardFunctionParams = 125
	// MaximumStandardFunctionResults mirrors MaximumStandardFunctionParams
	// for result arity.
	MaximumStandardFunctionResults = 125
)
