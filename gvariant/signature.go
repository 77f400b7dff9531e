// Copyright 2023 The gvdb Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package gvariant

import (
	"fmt"
)

// A signature is GVariant's textual type string: "u" is uint32,
// "ay" an array of bytes, "(uuay)" a tuple, "v" a boxed variant.
// This package implements the subset of types GVDB corpora contain;
// maybe-types and dictionaries are rejected.

// nextType splits the first complete type off sig, returning it and
// the remainder.
func nextType(sig string) (string, string, error) {
	if len(sig) == 0 {
		return "", "", fmt.Errorf("empty type signature")
	}
	switch sig[0] {
	case 'b', 'y', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'v':
		return sig[:1], sig[1:], nil
	case 'a':
		elem, rest, err := nextType(sig[1:])
		if err != nil {
			return "", "", err
		}
		return sig[:1+len(elem)], rest, nil
	case '(':
		depth := 0
		for i := 0; i < len(sig); i++ {
			switch sig[i] {
			case '(':
				depth++
			case ')':
				depth--
				if depth == 0 {
					inner := sig[:i+1]
					if _, err := tupleMembers(inner); err != nil {
						return "", "", err
					}
					return inner, sig[i+1:], nil
				}
			}
		}
		return "", "", fmt.Errorf("unterminated tuple in signature %q", sig)
	default:
		return "", "", fmt.Errorf("unsupported type character %q in signature %q", sig[0], sig)
	}
}

// validSignature reports whether sig is exactly one complete type.
func validSignature(sig string) bool {
	t, rest, err := nextType(sig)
	return err == nil && rest == "" && t == sig
}

// tupleMembers returns the member signatures of a tuple signature.
func tupleMembers(sig string) ([]string, error) {
	if len(sig) < 2 || sig[0] != '(' || sig[len(sig)-1] != ')' {
		return nil, fmt.Errorf("not a tuple signature: %q", sig)
	}
	var members []string
	rest := sig[1 : len(sig)-1]
	for len(rest) > 0 {
		m, r, err := nextType(rest)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
		rest = r
	}
	return members, nil
}

// alignmentOf returns the byte alignment a serialized value of this
// type requires.
func alignmentOf(sig string) int {
	switch sig[0] {
	case 'b', 'y', 's', 'o', 'g':
		return 1
	case 'n', 'q':
		return 2
	case 'i', 'u':
		return 4
	case 'x', 't', 'd', 'v':
		return 8
	case 'a':
		return alignmentOf(sig[1:])
	case '(':
		align := 1
		members, _ := tupleMembers(sig)
		for _, m := range members {
			if a := alignmentOf(m); a > align {
				align = a
			}
		}
		return align
	}
	return 1
}

// fixedSizeOf returns the serialized size of a fixed-size type, or
// false for variable-size types.  Fixed tuple sizes include the
// trailing padding up to the tuple alignment.
func fixedSizeOf(sig string) (int, bool) {
	switch sig[0] {
	case 'b', 'y':
		return 1, true
	case 'n', 'q':
		return 2, true
	case 'i', 'u':
		return 4, true
	case 'x', 't', 'd':
		return 8, true
	case 's', 'o', 'g', 'v', 'a':
		return 0, false
	case '(':
		members, _ := tupleMembers(sig)
		if len(members) == 0 {
			// the unit tuple serializes as a single zero byte
			return 1, true
		}
		size := 0
		for _, m := range members {
			ms, ok := fixedSizeOf(m)
			if !ok {
				return 0, false
			}
			size = align(size, alignmentOf(m)) + ms
		}
		return align(size, alignmentOf(sig)), true
	}
	return 0, false
}

func align(off, alignment int) int {
	if alignment > 1 && off%alignment != 0 {
		off += alignment - off%alignment
	}
	return off
}
