package gob

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
)

func Encode(e interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(e); err != nil {
		return nil, errors.Wrapf(err, "gob encode %T failed", e)
	}
	return buf.Bytes(), nil
}

func Decode(data []byte, o interface{}) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(o); err != nil {
		return errors.Wrapf(err, "gob decode %T failed", o)
	}
	return nil
}
