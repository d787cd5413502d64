//go:build wazero_testing

package buildoptions

// IsTest is true when built with -tags wazero_testing, enabling test-time
// assertions not meant to ship in production binaries.
const IsTest = true

// CallStackCeiling is lowered under the test tag so stack-overflow tests
// don't need to recurse deeply to trigger the trap.
const CallStackCeiling = 200

// OperandStackCeiling mirrors CallStackCeiling's reasoning for the operand
// stack bound.
const OperandStackCeiling = 1 << 12
