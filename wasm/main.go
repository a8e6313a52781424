//go:build wasm

package main

import (
	"syscall/js"
)

func main() {
	js.Global().Set("AtomselNewScanner", js.FuncOf(newScanner))
	js.Global().Set("AtomselScan", js.FuncOf(scan))
	js.Global().Set("AtomselScanBatch", js.FuncOf(scanBatch))
	js.Global().Set("AtomselAtoms", js.FuncOf(atomSelections))
	js.Global().Set("AtomselQuality", js.FuncOf(quality))
	js.Global().Set("AtomselCloseScanner", js.FuncOf(closeScanner))
	js.Global().Set("AtomselGetBuiltinRules", js.FuncOf(getBuiltinRules))

	// Keep WASM running
	<-make(chan struct{})
}
