package engine

import (
	"context"
	"sort"
)

// FuncInfo describes an imported or exported function
type FuncInfo struct {
	Module    string `json:"module,omitempty"`
	Name      string `json:"name"`
	Signature string `json:"signature"`
	Bound     bool   `json:"bound"`
}

// ModuleInfo summarizes a module's ABI surface
type ModuleInfo struct {
	Imports []FuncInfo `json:"imports"`
	Exports []FuncInfo `json:"exports"`
	Size    int        `json:"size"`
}

// Inspect compiles a module and reports its imports and exports. Bound marks
// imports the host can satisfy.
func (e *WazeroEngine) Inspect(ctx context.Context, src Source) (*ModuleInfo, error) {
	data, err := e.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	rt := e.newRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return nil, err
	}

	info := &ModuleInfo{Size: len(data)}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		fn, ok := lookupHostFunc(name)
		info.Imports = append(info.Imports, FuncInfo{
			Module:    module,
			Name:      name,
			Signature: signature(def.ParamTypes(), def.ResultTypes()),
			Bound: module == ImportModule && ok &&
				sameTypes(fn.params, def.ParamTypes()) && sameTypes(fn.results, def.ResultTypes()),
		})
	}
	for name, def := range compiled.ExportedFunctions() {
		info.Exports = append(info.Exports, FuncInfo{
			Name:      name,
			Signature: signature(def.ParamTypes(), def.ResultTypes()),
			Bound:     true,
		})
	}
	sort.Slice(info.Exports, func(i, j int) bool { return info.Exports[i].Name < info.Exports[j].Name })
	return info, nil
}
