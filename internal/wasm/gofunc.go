package wasm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/wazerow/wazerow/api"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	moduleType  = reflect.TypeOf((*api.Module)(nil)).Elem()
)

// reflectSignature maps a Go func's parameter/result types to their
// WebAssembly api.ValueType equivalents, for functions defined via
// HostFunctionBuilder.WithFunc rather than WithGoFunction/WithGoModuleFunction.
//
// The first parameter must be context.Context. The second may optionally be
// api.Module. Every remaining parameter and result must be one of
// uint32/int32/uint64/int64/float32/float64, or uintptr (mapped to externref).
func reflectSignature(fn interface{}) (params, results []api.ValueType, err error) {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil, nil, fmt.Errorf("not a function: %v", fn)
	}

	pStart := 0
	if fnType.NumIn() > 0 && fnType.In(0) == contextType {
		pStart = 1
	}
	if fnType.NumIn() > pStart && fnType.In(pStart) == moduleType {
		pStart++
	}

	for i := pStart; i < fnType.NumIn(); i++ {
		vt, err := goTypeToValueType(fnType.In(i))
		if err != nil {
			return nil, nil, fmt.Errorf("param[%d] %w", i, err)
		}
		params = append(params, vt)
	}
	for i := 0; i < fnType.NumOut(); i++ {
		vt, err := goTypeToValueType(fnType.Out(i))
		if err != nil {
			return nil, nil, fmt.Errorf("result[%d] %w", i, err)
		}
		results = append(results, vt)
	}
	return params, results, nil
}

func goTypeToValueType(t reflect.Type) (api.ValueType, error) {
	switch t.Kind() {
	case reflect.Uint32, reflect.Int32:
		return api.ValueTypeI32, nil
	case reflect.Uint64, reflect.Int64:
		return api.ValueTypeI64, nil
	case reflect.Float32:
		return api.ValueTypeF32, nil
	case reflect.Float64:
		return api.ValueTypeF64, nil
	case reflect.Uintptr:
		return api.ValueTypeExternref, nil
	}
	return 0, fmt.Errorf("unsupported type: %s", t.Kind())
}

// CallGoFunc invokes a host-defined function (raw Go func via reflection, or
// an api.GoFunction/api.GoModuleFunction) against an already-populated
// operand stack, writing results back onto the same stack — the calling
// convention shared with wasm-defined functions so the interpreter can
// dispatch either uniformly.
func CallGoFunc(ctx context.Context, mod api.Module, fn *FunctionInstance, stack []uint64) {
	switch f := fn.GoFunc.(type) {
	case api.GoFunction:
		f.Call(ctx, stack)
	case api.GoModuleFunction:
		f.Call(ctx, mod, stack)
	default:
		callReflectFunc(ctx, mod, fn.Type, f, stack)
	}
}

func callReflectFunc(ctx context.Context, mod api.Module, sig *FunctionType, fn interface{}, stack []uint64) {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	in := make([]reflect.Value, 0, fnType.NumIn())
	in = append(in, reflect.ValueOf(ctx))
	argIdx := 1
	if fnType.NumIn() > 1 && fnType.In(1) == moduleType {
		in = append(in, reflect.ValueOf(mod))
		argIdx = 2
	}
	for i, vt := range sig.Params {
		in = append(in, decodeReflectArg(fnType.In(argIdx+i), vt, stack[i]))
	}

	out := fnVal.Call(in)
	for i, v := range out {
		stack[i] = encodeReflectResult(sig.Results[i], v)
	}
}

func decodeReflectArg(t reflect.Type, vt api.ValueType, raw uint64) reflect.Value {
	switch vt {
	case api.ValueTypeI32:
		if t.Kind() == reflect.Int32 {
			return reflect.ValueOf(int32(uint32(raw))).Convert(t)
		}
		return reflect.ValueOf(uint32(raw)).Convert(t)
	case api.ValueTypeI64:
		if t.Kind() == reflect.Int64 {
			return reflect.ValueOf(int64(raw)).Convert(t)
		}
		return reflect.ValueOf(raw).Convert(t)
	case api.ValueTypeF32:
		return reflect.ValueOf(api.DecodeF32(raw)).Convert(t)
	case api.ValueTypeF64:
		return reflect.ValueOf(api.DecodeF64(raw)).Convert(t)
	case api.ValueTypeExternref:
		return reflect.ValueOf(api.DecodeExternref(raw)).Convert(t)
	}
	return reflect.Zero(t)
}

func encodeReflectResult(vt api.ValueType, v reflect.Value) uint64 {
	switch vt {
	case api.ValueTypeI32:
		if v.Kind() == reflect.Int32 {
			return api.EncodeI32(int32(v.Int()))
		}
		return uint64(uint32(v.Uint()))
	case api.ValueTypeI64:
		if v.Kind() == reflect.Int64 {
			return api.EncodeI64(v.Int())
		}
		return v.Uint()
	case api.ValueTypeF32:
		return api.EncodeF32(float32(v.Float()))
	case api.ValueTypeF64:
		return api.EncodeF64(v.Float())
	case api.ValueTypeExternref:
		return api.EncodeExternref(reflect.Value(v).Interface().(uintptr))
	}
	return 0
}
