package document

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// maxDepth bounds nesting so a hostile file cannot exhaust the stack.
const maxDepth = 512

// DuplicateHandler is told about every repeated key that had to be renamed.
// path locates the object holding the key.
type DuplicateHandler func(path, original, renamed string)

// Parse decodes one JSON document. Keys repeated within the same object are
// kept under key_1, key_2, ... instead of overwriting the earlier value.
func Parse(data []byte, onDuplicate DuplicateHandler) (*Value, error) {
	iter := jsoniter.ParseBytes(jsoniter.ConfigDefault, data)
	p := &parser{onDuplicate: onDuplicate}

	root := p.readValue(iter, "$", 0)
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("parsing document: %w", iter.Error)
	}
	if p.err != nil {
		return nil, fmt.Errorf("parsing document: %w", p.err)
	}
	if root == nil {
		return nil, fmt.Errorf("parsing document: no JSON value found")
	}
	if next := iter.WhatIsNext(); next != jsoniter.InvalidValue {
		return nil, fmt.Errorf("parsing document: unexpected data after top-level value")
	}
	return root, nil
}

type parser struct {
	onDuplicate DuplicateHandler
	err         error
}

func (p *parser) readValue(iter *jsoniter.Iterator, path string, depth int) *Value {
	if depth > maxDepth {
		p.err = fmt.Errorf("document nested deeper than %d levels at %s", maxDepth, path)
		iter.Skip()
		return nil
	}

	switch iter.WhatIsNext() {
	case jsoniter.ObjectValue:
		obj := newObject()
		ok := iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
			child := p.readValue(it, joinPath(path, key), depth+1)
			if it.Error != nil || p.err != nil {
				return false
			}
			name, renamed := obj.set(key, child)
			if renamed {
				child.path = joinPath(path, name)
				if p.onDuplicate != nil {
					p.onDuplicate(path, key, name)
				}
			}
			return true
		})
		if !ok {
			p.fail(iter, "object", path)
		}
		return &Value{kind: KindObject, obj: obj, path: path}

	case jsoniter.ArrayValue:
		var elems []*Value
		ok := iter.ReadArrayCB(func(it *jsoniter.Iterator) bool {
			child := p.readValue(it, path+"["+strconv.Itoa(len(elems))+"]", depth+1)
			if it.Error != nil || p.err != nil {
				return false
			}
			elems = append(elems, child)
			return true
		})
		if !ok {
			p.fail(iter, "array", path)
		}
		return &Value{kind: KindArray, arr: elems, path: path}

	case jsoniter.StringValue:
		return &Value{kind: KindString, str: iter.ReadString(), path: path}

	case jsoniter.NumberValue:
		return &Value{kind: KindNumber, num: iter.ReadNumber(), path: path}

	case jsoniter.BoolValue:
		return &Value{kind: KindBool, b: iter.ReadBool(), path: path}

	case jsoniter.NilValue:
		iter.ReadNil()
		return &Value{kind: KindNull, path: path}

	default:
		iter.ReportError("readValue", "unexpected token at "+path)
		return nil
	}
}

// fail records the first structural error. A truncated file surfaces from
// jsoniter as io.EOF, which Parse otherwise treats as a clean end.
func (p *parser) fail(iter *jsoniter.Iterator, what, path string) {
	if p.err != nil {
		return
	}
	if iter.Error != nil {
		p.err = fmt.Errorf("malformed %s at %s: %w", what, path, iter.Error)
		return
	}
	p.err = fmt.Errorf("malformed %s at %s", what, path)
}
