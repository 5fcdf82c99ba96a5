// Package rpc содержит общую инфраструктуру gRPC-клиентов к соседним сервисам:
// JSON-кодек, установку соединения и классификацию ошибок.
package rpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// CodecName: content-subtype, под которым зарегистрирован JSON-кодек.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec передаёт сообщения как JSON: у соседних сервисов нет общих .proto,
// контракт задан JSON-структурами.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	// gRPC не передаёт тело для nil-ответа; это эквивалент JSON null.
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return CodecName
}
