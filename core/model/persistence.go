package model

import (
	"encoding"
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/searchcv/pkg/errors"
)

func init() {
	// Hyperparameter values travel as interface{}; gob needs the composite
	// kinds registered up front.
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

// Snapshot is the persistable form of a model: its registry type, its
// hyperparameters and, when the model implements encoding.BinaryMarshaler,
// its learned state.
type Snapshot struct {
	Type   string
	Params map[string]interface{}
	State  []byte
}

// TakeSnapshot captures m. Models without GetParams produce a snapshot with
// nil Params; models without MarshalBinary produce one with nil State.
func TakeSnapshot(m Model) (*Snapshot, error) {
	if m == nil {
		return nil, errors.NewValueError("model.TakeSnapshot", "model is nil")
	}
	snap := &Snapshot{Type: TypeName(m)}
	if pg, ok := m.(ParameterGetter); ok {
		snap.Params = pg.GetParams()
	}
	if bm, ok := m.(encoding.BinaryMarshaler); ok {
		state, err := bm.MarshalBinary()
		if err != nil {
			return nil, errors.Wrapf(err, "snapshot %s", snap.Type)
		}
		snap.State = state
	}
	return snap, nil
}

// Restore rebuilds the model from the registry, then applies Params and
// State. It fails when the type is not registered.
func (s *Snapshot) Restore() (Model, error) {
	m, err := New(s.Type)
	if err != nil {
		return nil, err
	}
	if len(s.Params) > 0 {
		if ps, ok := m.(ParameterSetter); ok {
			if err := ps.SetParams(s.Params); err != nil {
				return nil, errors.Wrapf(err, "restore %s params", s.Type)
			}
		}
	}
	if len(s.State) > 0 {
		bu, ok := m.(encoding.BinaryUnmarshaler)
		if !ok {
			return nil, errors.Newf("restore %s: model has state but no UnmarshalBinary", s.Type)
		}
		if err := bu.UnmarshalBinary(s.State); err != nil {
			return nil, errors.Wrapf(err, "restore %s state", s.Type)
		}
	}
	return m, nil
}

// SaveToWriter gob-encodes v into w.
func SaveToWriter(v interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode")
	}
	return nil
}

// LoadFromReader gob-decodes r into v, which must be a pointer.
func LoadFromReader(v interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode")
	}
	return nil
}
