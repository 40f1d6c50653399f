// Command libvrp is the C boundary of the engine, built with
//
//	go build -buildmode=c-shared -o libvrp.so ./cmd/libvrp
//
// Every entry point returns immediately; exactly one of the two callbacks is invoked
// later from an engine goroutine with a NUL-terminated UTF-8 JSON payload that is
// only valid for the duration of the callback.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef void (*vrp_callback)(const char*);

static inline void vrp_invoke(vrp_callback cb, const char* payload) {
	if (cb) {
		cb(payload);
	}
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"vrpengine/internal/boundary"
	"vrpengine/internal/buildinfo"
)

func main() {}

// continuation adapts a C callback to a boundary continuation.
func continuation(cb C.vrp_callback) boundary.Continuation {
	return func(payload string) {
		cs := C.CString(payload)
		defer C.free(unsafe.Pointer(cs))
		C.vrp_invoke(cb, cs)
	}
}

func goStrings(arr **C.char, n C.int) []string {
	if arr == nil || n <= 0 {
		return nil
	}
	items := unsafe.Slice(arr, int(n))
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = C.GoString(s)
	}
	return out
}

func engineOf(h C.uintptr_t) *boundary.Engine {
	return cgo.Handle(h).Value().(*boundary.Engine)
}

func callHandle(c *boundary.Call) C.uintptr_t { return C.uintptr_t(cgo.NewHandle(c)) }

func callOf(h C.uintptr_t) *boundary.Call {
	return cgo.Handle(h).Value().(*boundary.Call)
}

//export vrp_abi_version
func vrp_abi_version() C.int { return C.int(buildinfo.ABIVersion) }

// vrp_init creates the engine behind the three unprefixed entry points. It returns 0 when
// that engine already existed and 1 when this call created it.
//
//export vrp_init
func vrp_init(workers C.int) C.int {
	if initDefault(int(workers)) {
		return 1
	}
	return 0
}

//export get_routing_locations
func get_routing_locations(problem *C.char, success, failure C.vrp_callback) {
	defaultEngine().GetRoutingLocations(C.GoString(problem), continuation(success), continuation(failure))
}

//export convert_to_pragmatic
func convert_to_pragmatic(format *C.char, inputs **C.char, inputsLen C.int, success, failure C.vrp_callback) {
	defaultEngine().ConvertToPragmatic(C.GoString(format), goStrings(inputs, inputsLen), continuation(success), continuation(failure))
}

//export solve_pragmatic
func solve_pragmatic(problem *C.char, matrices **C.char, matricesLen C.int, config *C.char, geojson C.int, success, failure C.vrp_callback) {
	defaultEngine().SolvePragmatic(C.GoString(problem), goStrings(matrices, matricesLen), C.GoString(config), geojson != 0,
		continuation(success), continuation(failure))
}

// vrp_engine_new creates an engine with its own worker pool. Release it with vrp_engine_free.
//
//export vrp_engine_new
func vrp_engine_new(workers C.int) C.uintptr_t {
	return C.uintptr_t(cgo.NewHandle(newEngine(int(workers))))
}

// vrp_engine_free cancels the running calls of the engine, waits for their callbacks and
// releases it.
//
//export vrp_engine_free
func vrp_engine_free(h C.uintptr_t) {
	handle := cgo.Handle(h)
	_ = handle.Value().(*boundary.Engine).Close()
	handle.Delete()
}

// The vrp_engine_* calls return a call handle for vrp_call_cancel and vrp_call_wait that
// must be released with vrp_call_free.

//export vrp_engine_get_routing_locations
func vrp_engine_get_routing_locations(h C.uintptr_t, problem *C.char, success, failure C.vrp_callback) C.uintptr_t {
	return callHandle(engineOf(h).GetRoutingLocations(C.GoString(problem), continuation(success), continuation(failure)))
}

//export vrp_engine_convert_to_pragmatic
func vrp_engine_convert_to_pragmatic(h C.uintptr_t, format *C.char, inputs **C.char, inputsLen C.int, success, failure C.vrp_callback) C.uintptr_t {
	return callHandle(engineOf(h).ConvertToPragmatic(C.GoString(format), goStrings(inputs, inputsLen),
		continuation(success), continuation(failure)))
}

//export vrp_engine_solve_pragmatic
func vrp_engine_solve_pragmatic(h C.uintptr_t, problem *C.char, matrices **C.char, matricesLen C.int, config *C.char, geojson C.int, success, failure C.vrp_callback) C.uintptr_t {
	return callHandle(engineOf(h).SolvePragmatic(C.GoString(problem), goStrings(matrices, matricesLen), C.GoString(config), geojson != 0,
		continuation(success), continuation(failure)))
}

// vrp_call_cancel requests cooperative cancellation. A solve that already has a solution
// still reports it through the success callback.
//
//export vrp_call_cancel
func vrp_call_cancel(h C.uintptr_t) { callOf(h).Cancel() }

// vrp_call_wait blocks until the callback of the call has returned.
//
//export vrp_call_wait
func vrp_call_wait(h C.uintptr_t) { callOf(h).Wait() }

//export vrp_call_free
func vrp_call_free(h C.uintptr_t) { cgo.Handle(h).Delete() }
