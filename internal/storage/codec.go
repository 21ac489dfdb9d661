package storage

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/klauspost/compress/zstd"
)

// Кодеки потокобезопасны для EncodeAll/DecodeAll
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// encodeRecord сериализует инвентарь в JSON и сжимает zstd
func encodeRecord(rec inventory.Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal inventory %s: %w", rec.Agent, err)
	}
	return encoder.EncodeAll(data, nil), nil
}

// decodeRecord обратная операция к encodeRecord
func decodeRecord(blob []byte) (inventory.Record, error) {
	var rec inventory.Record
	data, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return rec, fmt.Errorf("decompress inventory: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal inventory: %w", err)
	}
	return rec, nil
}
