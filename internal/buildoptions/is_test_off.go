//go:build !wazero_testing

package buildoptions

// IsTest is true if currently running unit tests. This can be used to
// insert "test-time" assertions in the main code as
// `if buildoptions.IsTest { ... }`, which are optimized out of the final
// binary wazerow users ship.
const IsTest = false

// CallStackCeiling is the maximum number of nested function calls allowed in
// a single invocation before the interpreter traps with StackOverflow. This
// bounds the explicit frame vector (design note: frames are never allocated
// on the host call stack).
const CallStackCeiling = 2000

// OperandStackCeiling is the maximum height, in 128-bit slots, the operand
// stack may reach before the interpreter traps with StackOverflow.
const OperandStackCeiling = 1 << 16
