//go:build wasm

package main

import (
	"context"
	"encoding/json"
	"sync"
	"syscall/js"

	"github.com/praetorian-inc/atomsel/pkg/scanner"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

var (
	scanners   = make(map[int]*scanner.Core)
	scannersMu sync.RWMutex
	nextID     int
)

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

func jsonResult(v interface{}) interface{} {
	b, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to marshal results: " + err.Error())
	}
	return string(b)
}

func lookup(handle int) (*scanner.Core, bool) {
	scannersMu.RLock()
	defer scannersMu.RUnlock()
	core, ok := scanners[handle]
	return core, ok
}

// parseRules decodes a JSON rule array. "" and "builtin" select the
// built-in rules.
func parseRules(rulesJSON string) ([]*types.Rule, error) {
	if rulesJSON == "" || rulesJSON == "builtin" {
		return nil, nil
	}
	var rules []*types.Rule
	if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []*types.Rule{}
	}
	return rules, nil
}

// newScanner compiles the given rules and returns a handle.
// JS: AtomselNewScanner(rulesJSON) -> {handle} or {error}
func newScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("rulesJSON argument required")
	}

	rules, err := parseRules(args[0].String())
	if err != nil {
		return errorResult("failed to parse rules JSON: " + err.Error())
	}

	core, err := scanner.NewCore(context.Background(), scanner.Config{
		Rules:          rules,
		SnippetContext: 32,
	})
	if err != nil {
		return errorResult("failed to create scanner: " + err.Error())
	}

	scannersMu.Lock()
	id := nextID
	nextID++
	scanners[id] = core
	scannersMu.Unlock()

	return map[string]interface{}{"handle": id}
}

// scan scans a single content string.
// JS: AtomselScan(handle, content, source) -> JSON ScanResult or {error}
func scan(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and content arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	item := scanner.ContentItem{Content: args[1].String()}
	if len(args) > 2 {
		item.Source = args[2].String()
	}

	result, err := core.Scan(item)
	if err != nil {
		return errorResult("scan failed: " + err.Error())
	}
	return jsonResult(result)
}

// scanBatch scans multiple content items. Per-item failures are reported in
// the item's result.
// JS: AtomselScanBatch(handle, itemsJSON) -> JSON BatchScanResult or {error}
func scanBatch(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("handle and itemsJSON arguments required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}

	var items []scanner.ContentItem
	if err := json.Unmarshal([]byte(args[1].String()), &items); err != nil {
		return errorResult("failed to parse items JSON: " + err.Error())
	}

	return jsonResult(core.ScanBatch(items))
}

// atomSelections returns the atoms chosen for each compiled rule.
// JS: AtomselAtoms(handle) -> JSON RuleAtoms array or {error}
func atomSelections(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	core, ok := lookup(args[0].Int())
	if !ok {
		return errorResult("invalid scanner handle")
	}
	return jsonResult(core.Atoms())
}

// quality scores hex-encoded atoms, e.g. ["4D 5A", "?? 00"].
// JS: AtomselQuality(atomsJSON) -> JSON QualityResult or {error}
func quality(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("atomsJSON argument required")
	}

	var hexAtoms []string
	if err := json.Unmarshal([]byte(args[0].String()), &hexAtoms); err != nil {
		return errorResult("failed to parse atoms JSON: " + err.Error())
	}

	result, err := scanner.Quality(hexAtoms)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(result)
}

// closeScanner closes a scanner and releases resources.
// JS: AtomselCloseScanner(handle)
func closeScanner(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("handle argument required")
	}

	handle := args[0].Int()

	scannersMu.Lock()
	core, ok := scanners[handle]
	if ok {
		delete(scanners, handle)
	}
	scannersMu.Unlock()

	if !ok {
		return errorResult("invalid scanner handle")
	}

	core.Close()
	return nil
}

// getBuiltinRules returns the built-in rules as JSON.
// JS: AtomselGetBuiltinRules() -> JSON rules array
func getBuiltinRules(this js.Value, args []js.Value) interface{} {
	rules, err := scanner.GetBuiltinRules()
	if err != nil {
		return errorResult("failed to load builtin rules: " + err.Error())
	}
	return jsonResult(rules)
}
