package transport

import (
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// knownDestinationRecord mirrors spec.md §6.3's known_destinations value:
// [timestamp_ms, packet_hash(32), public_key(64), app_data|nil].
type knownDestinationRecord struct {
	_msgpack struct{} `msgpack:",as_array"`

	TimestampMs int64  `msgpack:"timestamp_ms"`
	PacketHash  []byte `msgpack:"packet_hash"`
	PublicKey   []byte `msgpack:"public_key"`
	AppData     []byte `msgpack:"app_data"`
}

// ratchetRecord mirrors spec.md §6.3's ratchets/<hex> value.
type ratchetRecord struct {
	Ratchet  []byte  `msgpack:"ratchet"`
	Received float64 `msgpack:"received"`
}

// SaveKnownDestinations msgpack-encodes the known-destinations table and
// writes it atomically (temp file + rename), per spec.md §6.3.
func SaveKnownDestinations(path string, entries map[[16]byte]knownDestinationRecord) error {
	encoded := make(map[string]knownDestinationRecord, len(entries))
	for k, v := range entries {
		encoded[string(k[:])] = v
	}
	data, err := msgpack.Marshal(encoded)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// LoadKnownDestinations reads a msgpack-encoded known-destinations table.
// A missing file is not an error: it returns an empty map.
func LoadKnownDestinations(path string) (map[[16]byte]knownDestinationRecord, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[[16]byte]knownDestinationRecord{}, nil
	}
	if err != nil {
		return nil, err
	}

	var encoded map[string]knownDestinationRecord
	if err := msgpack.Unmarshal(data, &encoded); err != nil {
		return nil, err
	}

	out := make(map[[16]byte]knownDestinationRecord, len(encoded))
	for k, v := range encoded {
		var key [16]byte
		copy(key[:], []byte(k))
		out[key] = v
	}
	return out, nil
}

// SaveRatchet persists a single destination's newest ratchet to
// dir/ratchets/<hex_destination_hash>.
func SaveRatchet(dir string, destHash [16]byte, ratchet [32]byte, received time.Time) error {
	rec := ratchetRecord{
		Ratchet:  ratchet[:],
		Received: float64(received.UnixNano()) / 1e9,
	}
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	return atomicWrite(ratchetPath(dir, destHash), data)
}

// LoadRatchet reads a persisted ratchet, returning ok=false if none exists.
func LoadRatchet(dir string, destHash [16]byte) (ratchet [32]byte, received time.Time, ok bool) {
	data, err := os.ReadFile(ratchetPath(dir, destHash))
	if err != nil {
		return ratchet, received, false
	}
	var rec ratchetRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return ratchet, received, false
	}
	copy(ratchet[:], rec.Ratchet)
	received = time.Unix(0, int64(rec.Received*1e9))
	return ratchet, received, true
}

// DeleteRatchet removes an expired ratchet file (spec.md §6.3 "expired
// entries deleted on cleanup").
func DeleteRatchet(dir string, destHash [16]byte) error {
	err := os.Remove(ratchetPath(dir, destHash))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func ratchetPath(dir string, destHash [16]byte) string {
	return filepath.Join(dir, "ratchets", hexEncode(destHash[:]))
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0F]
	}
	return string(out)
}

func atomicWrite(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
