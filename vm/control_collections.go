package vm

import "github.com/brassline/core/value"

// Map/Vec opcodes copy their container, apply the change to the copy
// and write it to the result operand; the source variable is left
// unchanged (Go maps/slices alias their backing storage, so the copy
// keeps the two apart). Every malformed-type path
// logs and substitutes an empty/default value rather than aborting,
// per spec.md §7.

func execMapInsert(c Control, ctx *Context) {
	mapVar, keyVar, valVar, resVar := c.Args[0], c.Args[1], c.Args[2], c.Args[3]
	mv := ctx.Evaluate(mapVar)
	key := ctx.AsStr(ctx.Evaluate(keyVar))
	val := ctx.Evaluate(valVar)

	if mv.Kind != value.KindMap {
		ctx.Log.Error("MapInsert: not a map", "var", mapVar.Name)
		ctx.SetVar(resVar, value.Map(nil))
		return
	}
	m := make(map[string]value.Value, len(mv.Mp)+1)
	for k, v := range mv.Mp {
		m[k] = v
	}
	m[key] = val
	ctx.SetVar(resVar, value.Map(m))
}

func execMapGet(c Control, ctx *Context) {
	mapVar, keyVar, resVar := c.Args[0], c.Args[1], c.Args[2]
	key := ctx.AsStr(ctx.Evaluate(keyVar))
	mv := ctx.Evaluate(mapVar)

	if mv.Kind != value.KindMap {
		ctx.Log.Error("MapGet: not a map", "var", mapVar.Name)
		ctx.SetVar(resVar, value.Zero())
		return
	}
	v, ok := mv.Mp[key]
	if !ok {
		v = value.Zero()
	}
	ctx.SetVar(resVar, v)
}

func execMapHas(c Control, ctx *Context) {
	mapVar, keyVar, resVar := c.Args[0], c.Args[1], c.Args[2]
	key := ctx.AsStr(ctx.Evaluate(keyVar))
	mv := ctx.Evaluate(mapVar)
	has := false
	if mv.Kind == value.KindMap {
		_, has = mv.Mp[key]
	}
	ctx.SetVar(resVar, value.Bool(has))
}

func execMapRemove(c Control, ctx *Context) {
	mapVar, keyVar, resVar, removedVar := c.Args[0], c.Args[1], c.Args[2], c.Args[3]
	mv := ctx.Evaluate(mapVar)
	key := ctx.AsStr(ctx.Evaluate(keyVar))

	if mv.Kind != value.KindMap {
		ctx.Log.Error("MapRemove: not a map", "var", mapVar.Name)
		ctx.SetVar(resVar, value.Map(nil))
		ctx.SetVar(removedVar, value.Zero())
		return
	}
	m := make(map[string]value.Value, len(mv.Mp))
	for k, v := range mv.Mp {
		m[k] = v
	}
	removed, ok := m[key]
	if !ok {
		removed = value.Zero()
	}
	delete(m, key)
	ctx.SetVar(resVar, value.Map(m))
	ctx.SetVar(removedVar, removed)
}

func execVecPush(c Control, ctx *Context) {
	vecVar, valVar, resVar := c.Args[0], c.Args[1], c.Args[2]
	vv := ctx.Evaluate(vecVar)
	val := ctx.Evaluate(valVar)

	if vv.Kind != value.KindVec {
		ctx.Log.Error("VecPush: not a vec", "var", vecVar.Name)
		ctx.SetVar(resVar, value.Vec(nil))
		return
	}
	out := append(append([]value.Value(nil), vv.Vc...), val)
	ctx.SetVar(resVar, value.Vec(out))
}

func execVecPop(c Control, ctx *Context) {
	vecVar, resVar, removedVar := c.Args[0], c.Args[1], c.Args[2]
	vv := ctx.Evaluate(vecVar)

	if vv.Kind != value.KindVec {
		ctx.Log.Error("VecPop: not a vec", "var", vecVar.Name)
		ctx.SetVar(resVar, value.Vec(nil))
		ctx.SetVar(removedVar, value.Zero())
		return
	}
	if len(vv.Vc) == 0 {
		ctx.Log.Error("VecPop: empty vec")
		ctx.SetVar(resVar, vv)
		ctx.SetVar(removedVar, value.Zero())
		return
	}
	n := len(vv.Vc)
	out := append([]value.Value(nil), vv.Vc[:n-1]...)
	ctx.SetVar(resVar, value.Vec(out))
	ctx.SetVar(removedVar, vv.Vc[n-1])
}

func execVecLen(c Control, ctx *Context) {
	vecVar, resVar := c.Args[0], c.Args[1]
	vv := ctx.Evaluate(vecVar)
	if vv.Kind != value.KindVec {
		ctx.Log.Error("VecLen: not a vec", "var", vecVar.Name)
		ctx.SetVar(resVar, value.Integer(0))
		return
	}
	ctx.SetVar(resVar, value.Integer(int64(len(vv.Vc))))
}

func execVecInsert(c Control, ctx *Context) {
	vecVar, atVar, valVar, resVar := c.Args[0], c.Args[1], c.Args[2], c.Args[3]
	vv := ctx.Evaluate(vecVar)
	at := int(ctx.AsInteger(ctx.Evaluate(atVar)))
	val := ctx.Evaluate(valVar)

	if vv.Kind != value.KindVec {
		ctx.Log.Error("VecInsert: not a vec", "var", vecVar.Name)
		ctx.SetVar(resVar, value.Vec(nil))
		return
	}
	if at < 0 {
		at = 0
	}
	if at > len(vv.Vc) {
		at = len(vv.Vc)
	}
	out := make([]value.Value, 0, len(vv.Vc)+1)
	out = append(out, vv.Vc[:at]...)
	out = append(out, val)
	out = append(out, vv.Vc[at:]...)
	ctx.SetVar(resVar, value.Vec(out))
}

func execVecGet(c Control, ctx *Context) {
	vecVar, atVar, resVar := c.Args[0], c.Args[1], c.Args[2]
	at := int(ctx.AsInteger(ctx.Evaluate(atVar)))
	vv := ctx.Evaluate(vecVar)

	if vv.Kind != value.KindVec || at < 0 || at >= len(vv.Vc) {
		ctx.Log.Error("VecGet: not a vec or out of range", "var", vecVar.Name)
		ctx.SetVar(resVar, value.Zero())
		return
	}
	ctx.SetVar(resVar, vv.Vc[at])
}

func execVecRemove(c Control, ctx *Context) {
	vecVar, atVar, resVar, removedVar := c.Args[0], c.Args[1], c.Args[2], c.Args[3]
	vv := ctx.Evaluate(vecVar)
	at := int(ctx.AsInteger(ctx.Evaluate(atVar)))

	if vv.Kind != value.KindVec || at < 0 || at >= len(vv.Vc) {
		ctx.Log.Error("VecRemove: not a vec or out of range", "var", vecVar.Name)
		ctx.SetVar(resVar, value.Vec(nil))
		ctx.SetVar(removedVar, value.Zero())
		return
	}
	removed := vv.Vc[at]
	out := make([]value.Value, 0, len(vv.Vc)-1)
	out = append(out, vv.Vc[:at]...)
	out = append(out, vv.Vc[at+1:]...)
	ctx.SetVar(resVar, value.Vec(out))
	ctx.SetVar(removedVar, removed)
}
