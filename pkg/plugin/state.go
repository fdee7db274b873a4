package plugin

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
)

// stateMagic is the 4-byte envelope magic from §4.11/§6: "clap".
var stateMagic = [4]byte{'c', 'l', 'a', 'p'}

// SaveEnvelope produces the self-describing container described in
// §4.11 and §6: magic "clap", a big-endian u32 plugin-id length, the
// plugin-id bytes (no terminator), then the plugin's raw state
// payload. Grounded on the teacher's pkg/state stream/envelope shape.
func SaveEnvelope(p Plugin) ([]byte, error) {
	var payload bytes.Buffer
	if err := p.SaveState(&payload); err != nil {
		return nil, err
	}

	id := p.ID()
	var out bytes.Buffer
	out.Write(stateMagic[:])
	if err := binary.Write(&out, binary.BigEndian, uint32(len(id))); err != nil {
		return nil, err
	}
	out.WriteString(id)
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

// LoadEnvelope parses the envelope produced by SaveEnvelope and feeds
// the raw payload to the plugin's LoadState. If the magic is absent,
// the entire blob is treated as raw state (§6: "On load, if the magic
// is absent, the entire blob is treated as raw state").
func LoadEnvelope(p Plugin, blob []byte) error {
	payload, err := stripEnvelope(blob)
	if err != nil {
		return err
	}
	return p.LoadState(bytes.NewReader(payload))
}

// stripEnvelope removes the magic/id-length/id header if present,
// returning the raw state payload.
func stripEnvelope(blob []byte) ([]byte, error) {
	if len(blob) < 4 || !bytes.Equal(blob[:4], stateMagic[:]) {
		return blob, nil
	}
	if len(blob) < 8 {
		return nil, errors.New("plugin: truncated state envelope")
	}
	idLen := binary.BigEndian.Uint32(blob[4:8])
	start := 8 + int(idLen)
	if start > len(blob) {
		return nil, errors.New("plugin: state envelope id length exceeds blob")
	}
	return blob[start:], nil
}

// SaveEnvelopeContext and LoadEnvelopeContext prefer a plugin's
// context-aware save/load path when it advertises ContextStateSaver
// (§4.11), falling back to the plain path otherwise.
func SaveEnvelopeContext(ctx context.Context, p Plugin) ([]byte, error) {
	saver, ok := p.(ContextStateSaver)
	if !ok {
		return SaveEnvelope(p)
	}
	var payload bytes.Buffer
	if err := saver.SaveStateContext(ctx, &payload); err != nil {
		return nil, err
	}
	id := p.ID()
	var out bytes.Buffer
	out.Write(stateMagic[:])
	if err := binary.Write(&out, binary.BigEndian, uint32(len(id))); err != nil {
		return nil, err
	}
	out.WriteString(id)
	out.Write(payload.Bytes())
	return out.Bytes(), nil
}

func LoadEnvelopeContext(ctx context.Context, p Plugin, blob []byte) error {
	payload, err := stripEnvelope(blob)
	if err != nil {
		return err
	}
	if loader, ok := p.(ContextStateSaver); ok {
		return loader.LoadStateContext(ctx, bytes.NewReader(payload))
	}
	return p.LoadState(bytes.NewReader(payload))
}

// WriteTo/ReadFrom helpers so callers with an io.Writer/io.Reader (e.g.
// a project-archive member) don't need to hold the whole blob in
// memory twice.
func WriteEnvelopeTo(w io.Writer, p Plugin) error {
	data, err := SaveEnvelope(p)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func ReadEnvelopeFrom(r io.Reader, p Plugin) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	return LoadEnvelope(p, data)
}
