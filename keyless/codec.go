// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keyless

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// stableJSON marshals v with object keys in sorted order at every level, so
// equal values always produce equal bytes regardless of field order.
func stableJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	// encoding/json writes map keys sorted.
	return json.Marshal(generic)
}

// payloadAAD binds a sealed payload to its role and pack set.
// The serialization scheme is:
//
//	len(role) || role || len(packSetID) || packSetID
func payloadAAD(role Role, packSetID string) ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, field := range []string{string(role), packSetID} {
		if err := binary.Write(buf, binary.LittleEndian, uint64(len(field))); err != nil {
			return nil, fmt.Errorf("unable to serialize field length: %v", err)
		}
		if _, err := buf.WriteString(field); err != nil {
			return nil, fmt.Errorf("unable to serialize field: %v", err)
		}
	}
	return buf.Bytes(), nil
}

func passwordKey(password string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(password)
	if err != nil || len(key) != aeadKeyBytes {
		return nil, fmt.Errorf("%w: password is not a %d byte base64 key", ErrWrongPassword, aeadKeyBytes)
	}
	return key, nil
}

// sealPayload serializes payload as stable JSON and encrypts it under password.
func sealPayload(payload any, password string, role Role, packSetID string) ([]byte, error) {
	key, err := passwordKey(password)
	if err != nil {
		return nil, err
	}
	plaintext, err := stableJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("serializing %s payload: %v", role, err)
	}
	aad, err := payloadAAD(role, packSetID)
	if err != nil {
		return nil, err
	}
	c, err := newPayloadCipher(key)
	if err != nil {
		return nil, err
	}
	out := new(bytes.Buffer)
	if err := writeHeader(out, key); err != nil {
		return nil, fmt.Errorf("writing header: %v", err)
	}
	if err := c.seal(out, plaintext, aad); err != nil {
		return nil, fmt.Errorf("encrypting %s payload: %v", role, err)
	}
	return out.Bytes(), nil
}

// openPayload decrypts a sealed payload into a T. Wrong passwords are
// reported as ErrWrongPassword, damaged ciphertext as ErrCorruptedCiphertext
// and undecodable plaintext as ErrMalformedPayload.
func openPayload[T any](sealed []byte, password string, role Role, packSetID string) (*T, error) {
	key, err := passwordKey(password)
	if err != nil {
		return nil, err
	}
	if len(sealed) < headerBytes {
		return nil, fmt.Errorf("%w: %s payload is %d bytes", ErrCorruptedCiphertext, role, len(sealed))
	}
	r := bytes.NewReader(sealed)
	if _, err := readHeader(r, key); err != nil {
		return nil, fmt.Errorf("opening %s payload: %w", role, err)
	}
	aad, err := payloadAAD(role, packSetID)
	if err != nil {
		return nil, err
	}
	c, err := newPayloadCipher(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.open(r, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrCorruptedCiphertext, role, err)
	}
	var out T
	if err := json.Unmarshal(plaintext, &out); err != nil {
		return nil, fmt.Errorf("%w: %s payload: %v", ErrMalformedPayload, role, err)
	}
	return &out, nil
}

// EncryptPayload seals payload under password for the given role and pack set.
func EncryptPayload(payload any, password string, role Role, packSetID string) ([]byte, error) {
	return sealPayload(payload, password, role, packSetID)
}

// DecryptDevicePayload opens the payload of a DeviceKeyPack.
func DecryptDevicePayload(p *DeviceKeyPack, password string) (*DevicePayload, error) {
	return openPayload[DevicePayload](p.Encrypted, password, RoleDevice, p.PackSetID)
}

// DecryptAuthPayload opens the payload of an AuthKeyPack.
func DecryptAuthPayload(p *AuthKeyPack, password string) (*AuthPayload, error) {
	return openPayload[AuthPayload](p.Encrypted, password, RoleAuth, p.PackSetID)
}

// DecryptCloudPayload opens the payload of a CloudKeyPack.
func DecryptCloudPayload(p *CloudKeyPack, password string) (*CloudPayload, error) {
	return openPayload[CloudPayload](p.Encrypted, password, RoleCloud, p.PackSetID)
}

// MarshalPack serializes a pack as JSON with sorted keys.
func MarshalPack(pack any) ([]byte, error) {
	return stableJSON(pack)
}

func unmarshalPack[T any](data []byte, packSetID func(*T) string) (*T, error) {
	var p T
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := ValidatePackSetID(packSetID(&p)); err != nil {
		return nil, err
	}
	return &p, nil
}

// UnmarshalDeviceKeyPack parses a serialized DeviceKeyPack.
func UnmarshalDeviceKeyPack(data []byte) (*DeviceKeyPack, error) {
	return unmarshalPack(data, func(p *DeviceKeyPack) string { return p.PackSetID })
}

// UnmarshalAuthKeyPack parses a serialized AuthKeyPack.
func UnmarshalAuthKeyPack(data []byte) (*AuthKeyPack, error) {
	return unmarshalPack(data, func(p *AuthKeyPack) string { return p.PackSetID })
}

// UnmarshalCloudKeyPack parses a serialized CloudKeyPack.
func UnmarshalCloudKeyPack(data []byte) (*CloudKeyPack, error) {
	return unmarshalPack(data, func(p *CloudKeyPack) string { return p.PackSetID })
}
