// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxMessageSize bounds one launch description on the wire.
const MaxMessageSize = 4 << 20

// ErrTooLarge is returned when a message exceeds [MaxMessageSize] in
// either direction.
var ErrTooLarge = errors.New("codec: message exceeds size limit")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes exactly one CBOR item from data into v. Trailing
// bytes are an error.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// WriteMessage encodes v and writes it to w in a single write. The
// reader sees end of message when the writer closes its end.
func WriteMessage(w io.Writer, v any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("codec: encode: %w", err)
	}
	if len(data) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("codec: write: %w", err)
	}
	return nil
}

// ReadMessage reads r to end of file and decodes the contents into v.
// An empty stream is io.ErrUnexpectedEOF: the writer went away before
// sending anything.
func ReadMessage(r io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(r, MaxMessageSize+1))
	if err != nil {
		return fmt.Errorf("codec: read: %w", err)
	}
	if len(data) > MaxMessageSize {
		return ErrTooLarge
	}
	if len(data) == 0 {
		return fmt.Errorf("codec: read: %w", io.ErrUnexpectedEOF)
	}
	if err := decMode.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: decode: %w", err)
	}
	return nil
}
