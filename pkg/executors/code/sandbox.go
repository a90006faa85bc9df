package code

import "github.com/dop251/goja"

// blockedGlobals are identifiers scripts must not reach, whether or not the
// runtime would otherwise provide them. They are pinned to undefined so a
// script cannot shadow-check its way to host facilities.
var blockedGlobals = []string{
	"require",
	"module",
	"exports",
	"process",
	"global",
	"globalThis",
	"Buffer",
	"setTimeout",
	"setInterval",
	"setImmediate",
	"clearTimeout",
	"clearInterval",
	"queueMicrotask",
	"fetch",
	"XMLHttpRequest",
	"WebSocket",
	"importScripts",
}

// newSandboxedVM creates a goja runtime with host-facing globals removed.
func newSandboxedVM() *goja.Runtime {
	vm := goja.New()
	for _, name := range blockedGlobals {
		_ = vm.Set(name, goja.Undefined())
	}
	return vm
}
