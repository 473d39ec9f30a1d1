package store

import (
	"encoding/json"
	"fmt"

	"github.com/jward/bindery/internal/db"
	"github.com/jward/bindery/internal/path"
	"github.com/jward/bindery/internal/typemap"
)

// Item payloads and boundary types are closed unions, so rows carry them as
// {kind, data} JSON envelopes. Decoding switches on kind and rejects
// anything unknown, keeping the union closed on disk as well.

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func wrap(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

func encodeNativePayload(p db.NativePayload) ([]byte, error) {
	switch p := p.(type) {
	case db.NamespaceDecl:
		return wrap("namespace", p)
	case db.TypeDecl:
		return wrap("type", p)
	case db.EnumValueDecl:
		return wrap("enum_value", p)
	case db.FunctionDecl:
		return wrap("function", p)
	case db.ClassFieldDecl:
		return wrap("field", p)
	case db.BaseRelationDecl:
		return wrap("base", p)
	case db.SignalArgsDecl:
		return wrap("signal_args", p)
	default:
		return nil, fmt.Errorf("encode native payload: unknown variant %T", p)
	}
}

func decodeNativePayload(raw []byte) (db.NativePayload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode native payload: %w", err)
	}
	var (
		payload db.NativePayload
		err     error
	)
	switch env.Kind {
	case "namespace":
		var p db.NamespaceDecl
		err = json.Unmarshal(env.Data, &p)
		payload = p
	case "type":
		var p db.TypeDecl
		err = json.Unmarshal(env.Data, &p)
		payload = p
	case "enum_value":
		var p db.EnumValueDecl
		err = json.Unmarshal(env.Data, &p)
		payload = p
	case "function":
		var p db.FunctionDecl
		err = json.Unmarshal(env.Data, &p)
		payload = p
	case "field":
		var p db.ClassFieldDecl
		err = json.Unmarshal(env.Data, &p)
		payload = p
	case "base":
		var p db.BaseRelationDecl
		err = json.Unmarshal(env.Data, &p)
		payload = p
	case "signal_args":
		var p db.SignalArgsDecl
		err = json.Unmarshal(env.Data, &p)
		payload = p
	default:
		return nil, fmt.Errorf("decode native payload: unknown kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode native payload %q: %w", env.Kind, err)
	}
	return payload, nil
}

func encodeFfiPayload(p db.FfiPayload) ([]byte, error) {
	switch p := p.(type) {
	case db.WrapperFunction:
		return wrap("wrapper_function", p)
	case db.SlotWrapper:
		return wrap("slot_wrapper", p)
	default:
		return nil, fmt.Errorf("encode ffi payload: unknown variant %T", p)
	}
}

func decodeFfiPayload(raw []byte) (db.FfiPayload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode ffi payload: %w", err)
	}
	switch env.Kind {
	case "wrapper_function":
		var p db.WrapperFunction
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode wrapper function: %w", err)
		}
		return p, nil
	case "slot_wrapper":
		var p db.SlotWrapper
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode slot wrapper: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("decode ffi payload: unknown kind %q", env.Kind)
	}
}

// jsonFunction flattens the surface Function payload, whose boundary types
// need envelope encoding themselves.
type jsonFunction struct {
	Path      path.Path         `json:"path"`
	FfiOrigin db.FfiItemID      `json:"ffi_origin"`
	Return    json.RawMessage   `json:"return"`
	Params    []json.RawMessage `json:"params"`
	Unsafe    bool              `json:"unsafe"`
}

func encodeSurfacePayload(p db.SurfacePayload) ([]byte, error) {
	switch p := p.(type) {
	case db.Module:
		return wrap("module", p)
	case db.Struct:
		return wrap("struct", p)
	case db.FlagsType:
		return wrap("flags", p)
	case db.Function:
		ret, err := encodeFinalType(p.Return)
		if err != nil {
			return nil, err
		}
		params := make([]json.RawMessage, len(p.Params))
		for i, param := range p.Params {
			if params[i], err = encodeFinalType(param); err != nil {
				return nil, err
			}
		}
		return wrap("function", jsonFunction{
			Path:      p.FuncPath,
			FfiOrigin: p.FfiOrigin,
			Return:    ret,
			Params:    params,
			Unsafe:    p.Unsafe,
		})
	default:
		return nil, fmt.Errorf("encode surface payload: unknown variant %T", p)
	}
}

func decodeSurfacePayload(raw []byte) (db.SurfacePayload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode surface payload: %w", err)
	}
	switch env.Kind {
	case "module":
		var p db.Module
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode module: %w", err)
		}
		return p, nil
	case "struct":
		var p db.Struct
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode struct: %w", err)
		}
		return p, nil
	case "flags":
		var p db.FlagsType
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
		return p, nil
	case "function":
		var jf jsonFunction
		if err := json.Unmarshal(env.Data, &jf); err != nil {
			return nil, fmt.Errorf("decode function: %w", err)
		}
		ret, err := decodeFinalType(jf.Return)
		if err != nil {
			return nil, err
		}
		params := make([]typemap.FinalType, len(jf.Params))
		for i, raw := range jf.Params {
			if params[i], err = decodeFinalType(raw); err != nil {
				return nil, err
			}
		}
		return db.Function{
			FuncPath:  jf.Path,
			FfiOrigin: jf.FfiOrigin,
			Return:    ret,
			Params:    params,
			Unsafe:    jf.Unsafe,
		}, nil
	default:
		return nil, fmt.Errorf("decode surface payload: unknown kind %q", env.Kind)
	}
}

type jsonNamed struct {
	Path path.Path         `json:"path"`
	Args []json.RawMessage `json:"args,omitempty"`
}

type jsonFuncSig struct {
	Return json.RawMessage   `json:"return"`
	Params []json.RawMessage `json:"params,omitempty"`
}

type jsonIndirection struct {
	Borrow   bool            `json:"borrow"`
	Lifetime string          `json:"lifetime,omitempty"`
	Const    bool            `json:"const"`
	Pointee  json.RawMessage `json:"pointee"`
}

func encodeType(t typemap.Type) (json.RawMessage, error) {
	switch t := t.(type) {
	case typemap.Unit:
		return wrap("unit", struct{}{})
	case typemap.Named:
		args := make([]json.RawMessage, len(t.Args))
		var err error
		for i, arg := range t.Args {
			if args[i], err = encodeType(arg); err != nil {
				return nil, err
			}
		}
		return wrap("named", jsonNamed{Path: t.Path, Args: args})
	case typemap.FuncSig:
		ret, err := encodeType(t.Return)
		if err != nil {
			return nil, err
		}
		params := make([]json.RawMessage, len(t.Params))
		for i, p := range t.Params {
			if params[i], err = encodeType(p); err != nil {
				return nil, err
			}
		}
		return wrap("fn", jsonFuncSig{Return: ret, Params: params})
	case typemap.Indirection:
		pointee, err := encodeType(t.Pointee)
		if err != nil {
			return nil, err
		}
		return wrap("ind", jsonIndirection{
			Borrow:   t.Kind == typemap.Borrow,
			Lifetime: t.Lifetime,
			Const:    t.Const,
			Pointee:  pointee,
		})
	default:
		return nil, fmt.Errorf("encode type: unknown variant %T", t)
	}
}

func decodeType(raw json.RawMessage) (typemap.Type, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode type: %w", err)
	}
	switch env.Kind {
	case "unit":
		return typemap.Unit{}, nil
	case "named":
		var jn jsonNamed
		if err := json.Unmarshal(env.Data, &jn); err != nil {
			return nil, fmt.Errorf("decode named type: %w", err)
		}
		var args []typemap.Type
		for _, argRaw := range jn.Args {
			arg, err := decodeType(argRaw)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		return typemap.Named{Path: jn.Path, Args: args}, nil
	case "fn":
		var jf jsonFuncSig
		if err := json.Unmarshal(env.Data, &jf); err != nil {
			return nil, fmt.Errorf("decode fn type: %w", err)
		}
		ret, err := decodeType(jf.Return)
		if err != nil {
			return nil, err
		}
		var params []typemap.Type
		for _, pRaw := range jf.Params {
			p, err := decodeType(pRaw)
			if err != nil {
				return nil, err
			}
			params = append(params, p)
		}
		return typemap.FuncSig{Return: ret, Params: params}, nil
	case "ind":
		var ji jsonIndirection
		if err := json.Unmarshal(env.Data, &ji); err != nil {
			return nil, fmt.Errorf("decode indirection: %w", err)
		}
		pointee, err := decodeType(ji.Pointee)
		if err != nil {
			return nil, err
		}
		kind := typemap.Pointer
		if ji.Borrow {
			kind = typemap.Borrow
		}
		return typemap.Indirection{Kind: kind, Lifetime: ji.Lifetime, Const: ji.Const, Pointee: pointee}, nil
	default:
		return nil, fmt.Errorf("decode type: unknown kind %q", env.Kind)
	}
}

type jsonFinalType struct {
	FFI        json.RawMessage `json:"ffi"`
	Surface    json.RawMessage `json:"surface"`
	Conversion int             `json:"conversion"`
}

func encodeFinalType(f typemap.FinalType) (json.RawMessage, error) {
	ffi, err := encodeType(f.FFI)
	if err != nil {
		return nil, err
	}
	surface, err := encodeType(f.Surface)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonFinalType{FFI: ffi, Surface: surface, Conversion: int(f.Conversion)})
}

func decodeFinalType(raw json.RawMessage) (typemap.FinalType, error) {
	var jf jsonFinalType
	if err := json.Unmarshal(raw, &jf); err != nil {
		return typemap.FinalType{}, fmt.Errorf("decode final type: %w", err)
	}
	ffi, err := decodeType(jf.FFI)
	if err != nil {
		return typemap.FinalType{}, err
	}
	surface, err := decodeType(jf.Surface)
	if err != nil {
		return typemap.FinalType{}, err
	}
	return typemap.FinalType{FFI: ffi, Surface: surface, Conversion: typemap.ConversionKind(jf.Conversion)}, nil
}

type jsonCheckEntry struct {
	Target         string  `json:"target"`
	LibraryVersion string  `json:"library_version,omitempty"`
	Error          *string `json:"error,omitempty"`
}

func encodeChecks(entries []db.CheckEntry) ([]byte, error) {
	out := make([]jsonCheckEntry, len(entries))
	for i, e := range entries {
		out[i] = jsonCheckEntry{
			Target:         e.Env.Target,
			LibraryVersion: e.Env.LibraryVersion,
			Error:          e.Error,
		}
	}
	return json.Marshal(out)
}

func decodeChecks(raw []byte) ([]db.CheckEntry, error) {
	var in []jsonCheckEntry
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("decode checks: %w", err)
	}
	entries := make([]db.CheckEntry, len(in))
	for i, e := range in {
		entries[i] = db.CheckEntry{
			Env:   db.Environment{Target: e.Target, LibraryVersion: e.LibraryVersion},
			Error: e.Error,
		}
	}
	return entries, nil
}
